package config

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.etcd.io/etcd/client/v3"

	"go.streamcore.dev/engine/actor"
	"go.streamcore.dev/engine/barrier"
	"go.streamcore.dev/engine/coordclient"
	"go.streamcore.dev/engine/metrics"
	"go.streamcore.dev/engine/sharedctx"
	"go.streamcore.dev/engine/statestore"
)

// Bootstrap assembles a ready-to-use barrier.Manager from c's tunables: it
// registers c's metrics under c.MetricsNamespace, lists the partial graphs
// this node owns under c.CoordPrefix, and constructs the Manager in
// c.TestingMode if set. This is the one place the three ambient knobs in
// Config actually reach their collaborators, mirroring gazette's
// consumer/service.go pattern of a single assembly function a cmd/ entry
// point calls rather than threading raw config fields through every
// constructor by hand.
func (c Config) Bootstrap(
	ctx context.Context,
	etcdClient *clientv3.Client,
	reg prometheus.Registerer,
	actorManager actor.Manager,
	shared sharedctx.Context,
	store statestore.Store,
) (*barrier.Manager, *metrics.Set, error) {
	var metricsSet = metrics.NewSet(reg, c.MetricsNamespace)

	var graphs, err = coordclient.FetchInitialPartialGraphs(ctx, etcdClient, c.CoordPrefix)
	if err != nil {
		return nil, nil, err
	}

	var opts []barrier.Option
	if c.TestingMode {
		opts = append(opts, barrier.WithTestingMode())
	}

	var mgr = barrier.New(actorManager, shared, store, metricsSet, graphs, opts...)
	return mgr, metricsSet, nil
}
