package handlers

import (
	"context"

	"github.com/centrifuge/go-substrate-rpc-client/v2/client"
	"github.com/centrifuge/go-substrate-rpc-client/v2/config"
	gethrpc "github.com/centrifuge/go-substrate-rpc-client/v2/gethrpc"
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"

	"github.com/novasamatech/nova-spektr-sub014/models"
)

// statusBuffer holds pool updates that arrive while the watcher is busy.
const statusBuffer = 8

// AuthorSubmitAndWatchExtrinsic submits xt and subscribes to its pool status. Only the
// subscription handshake is bounded by ctx and the client's subscribe timeout.
func AuthorSubmitAndWatchExtrinsic(ctx context.Context, cli client.Client, xt models.Extrinsic) (*ExtrinsicStatusSubscription, error) {
	enc, err := xt.Hex()
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithTimeout(ctx, config.Default().SubscribeTimeout)
	defer cancel()

	statuses := make(chan types.ExtrinsicStatus, statusBuffer)
	sub, err := cli.Subscribe(subCtx, "author", "submitAndWatchExtrinsic", "unwatchExtrinsic", "extrinsicUpdate",
		statuses, enc)
	if err != nil {
		return nil, err
	}
	return &ExtrinsicStatusSubscription{sub: sub, statuses: statuses}, nil
}

// ExtrinsicStatusSubscription follows one submitted extrinsic through the pool.
type ExtrinsicStatusSubscription struct {
	sub      *gethrpc.ClientSubscription
	statuses chan types.ExtrinsicStatus
}

// Chan stays open after Unsubscribe; readers stop on Err or their own context.
func (s *ExtrinsicStatusSubscription) Chan() <-chan types.ExtrinsicStatus {
	return s.statuses
}

func (s *ExtrinsicStatusSubscription) Err() <-chan error {
	return s.sub.Err()
}

// Unsubscribe is safe to call more than once.
func (s *ExtrinsicStatusSubscription) Unsubscribe() {
	s.sub.Unsubscribe()
}
