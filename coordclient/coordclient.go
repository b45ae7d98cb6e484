// Package coordclient is the small etcd-backed helper a node process uses
// at startup to learn which partial graphs it owns, before constructing a
// barrier.Manager. It is grounded on gazette's own etcd usage pattern for
// distributed coordination state (consumer/service.go's
// *clientv3.Client field, consumer/key_space.go's KeySpace decoding) scaled
// down to the one read the barrier manager's bootstrap actually needs.
package coordclient

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.etcd.io/etcd/client/v3"

	"go.streamcore.dev/engine/ids"
)

// FetchInitialPartialGraphs lists the keys under prefix, each of which is
// expected to be suffixed with a decimal PartialGraphID owned by this
// node, and returns them sorted ascending. It does not watch for changes:
// partial-graph ownership is decided once at node bootstrap, with the
// coordinator driving any later rebalance through a fresh process restart.
func FetchInitialPartialGraphs(ctx context.Context, cli *clientv3.Client, prefix string) ([]ids.PartialGraphID, error) {
	var resp, err = cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrapf(err, "coordclient: listing %q", prefix)
	}

	var out = make([]ids.PartialGraphID, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var suffix = strings.TrimPrefix(string(kv.Key), prefix)
		var n, perr = strconv.ParseInt(suffix, 10, 64)
		if perr != nil {
			return nil, errors.Wrapf(perr, "coordclient: key %q under %q is not a partial graph id", kv.Key, prefix)
		}
		out = append(out, ids.PartialGraphID(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
