package handlers

import (
	"bytes"

	"github.com/centrifuge/go-substrate-rpc-client/v2/client"
	"github.com/centrifuge/go-substrate-rpc-client/v2/types"

	"github.com/novasamatech/nova-spektr-sub014/models"
)

func ChainGetBlock(cli client.Client, blockHash *types.Hash) (*models.SignedBlock, error) {
	var signedBlock models.SignedBlock
	err := client.CallWithBlockHash(cli, &signedBlock, "chain_getBlock", blockHash)
	if err != nil {
		return nil, err
	}
	return &signedBlock, nil
}

// extrinsicIndex finds the encoded extrinsic in block, -1 if absent.
func extrinsicIndex(block *models.Block, encoded []byte) int {
	for i, xt := range block.Extrinsics {
		if bytes.Equal(xt, encoded) {
			return i
		}
	}
	return -1
}
