package txstore

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/agrimarket/agridash/types"
)

func record(hash string, at time.Time, status types.TxStatus) types.TxRecord {
	return types.TxRecord{
		TxHandle: types.TxHandle{
			Kind:   types.TxKindApprove,
			Method: "approve",
			Hash:   common.HexToHash(hash),
			Status: status,
		},
		IntentID:    "intent-" + hash,
		IntentKind:  types.IntentBid,
		SubmittedAt: at,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := New(dbm.NewMemDB())
	defer s.Close()

	rec := record("0x01", time.Unix(100, 0), types.TxPending)
	require.NoError(t, s.Save(rec))

	got, err := s.Get(rec.Hash)
	require.NoError(t, err)
	assert.Equal(t, rec.IntentID, got.IntentID)
	assert.Equal(t, types.TxPending, got.Status)

	_, err = s.Get(common.HexToHash("0xff"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveUpdatesInPlace(t *testing.T) {
	s := New(dbm.NewMemDB())
	defer s.Close()

	submitted := time.Unix(100, 0)
	rec := record("0x01", submitted, types.TxPending)
	require.NoError(t, s.Save(rec))

	rec.Status = types.TxFailed
	rec.Error = "transaction reverted"
	rec.ResolvedAt = time.Unix(130, 0)
	// a later writer must not move the record in the index
	rec.SubmittedAt = time.Unix(500, 0)
	require.NoError(t, s.Save(rec))

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, types.TxFailed, all[0].Status)
	assert.Equal(t, "transaction reverted", all[0].Error)
	assert.True(t, all[0].SubmittedAt.Equal(submitted))
}

func TestListNewestFirst(t *testing.T) {
	s := New(dbm.NewMemDB())
	defer s.Close()

	base := time.Unix(1_700_000_000, 0)
	require.NoError(t, s.Save(record("0x02", base.Add(2*time.Second), types.TxConfirmed)))
	require.NoError(t, s.Save(record("0x01", base.Add(1*time.Second), types.TxPending)))
	require.NoError(t, s.Save(record("0x03", base.Add(3*time.Second), types.TxPending)))

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, common.HexToHash("0x03"), all[0].Hash)
	assert.Equal(t, common.HexToHash("0x02"), all[1].Hash)
	assert.Equal(t, common.HexToHash("0x01"), all[2].Hash)

	two, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	pending, err := s.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, common.HexToHash("0x03"), pending[0].Hash)
	assert.Equal(t, common.HexToHash("0x01"), pending[1].Hash)
}

func TestEmptyStore(t *testing.T) {
	s := New(dbm.NewMemDB())
	defer s.Close()

	all, err := s.List(10)
	require.NoError(t, err)
	assert.Empty(t, all)
}
