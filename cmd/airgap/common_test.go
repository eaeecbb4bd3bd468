package main

import (
	"strings"
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novasamatech/nova-spektr-sub014/models"
)

func TestParseAccounts(t *testing.T) {
	raw := make([]byte, 32)
	raw[0] = 0xd4
	hex := types.HexEncodeToString(raw)
	ss58 := models.SS58Addr(types.NewAccountID(raw), 42)

	accounts, err := parseAccounts([]string{hex + ", " + ss58, ""})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, accounts[0], accounts[1])

	_, err = parseAccounts([]string{"0x0102"})
	assert.Error(t, err)
}

func TestReadFrames(t *testing.T) {
	input := "frame 0x0001\n\n0203\nff\n"
	var got [][]byte
	err := readFrames(strings.NewReader(input), func(frame []byte) bool {
		got = append(got, frame)
		return len(got) == 2
	})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0x00, 0x01}, {0x02, 0x03}}, got)

	err = readFrames(strings.NewReader("zz\n"), func([]byte) bool { return false })
	assert.Error(t, err)
}
