package commands

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimarket/agridash/libs/cli"
	"github.com/agrimarket/agridash/libs/log"
	"github.com/agrimarket/agridash/sequencer"
	"github.com/agrimarket/agridash/types"
	"github.com/agrimarket/agridash/wallet"
)

func testSignRequest() wallet.SignRequest {
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    3,
		To:       &to,
		Gas:      21000,
		GasPrice: big.NewInt(2_500_000_000),
	})
	return wallet.SignRequest{Method: "approve", Tx: tx}
}

func TestConfirmPrompt(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"n\n", false},
		{"\n", false},
		{"maybe\n", false},
		{"y", true}, // EOF after the answer
	}
	for _, tc := range cases {
		t.Run(strings.TrimSpace(tc.input), func(t *testing.T) {
			var out bytes.Buffer
			confirm := confirmPrompt(bufio.NewReader(strings.NewReader(tc.input)), &out)

			ok, err := confirm(context.Background(), testSignRequest())
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
			assert.Contains(t, out.String(), "Sign approve to "+testSignRequest().Tx.To().Hex())
			assert.Contains(t, out.String(), "nonce 3, gas 21000 at 2.5 gwei")
		})
	}
}

func TestConfirmPromptClosedInput(t *testing.T) {
	confirm := confirmPrompt(bufio.NewReader(strings.NewReader("")), &bytes.Buffer{})
	ok, err := confirm(context.Background(), testSignRequest())
	require.Error(t, err)
	assert.False(t, ok)
}

func TestConfirmPromptCanceled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	confirm := confirmPrompt(bufio.NewReader(pr), &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	ok, err := confirm(ctx, testSignRequest())
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

type fakeResetter struct {
	handles []types.TxHandle
	done    chan *sequencer.Result
	resets  int
}

func (f *fakeResetter) Reset() []types.TxHandle {
	f.resets++
	// the sequence goroutine only returns once reset
	f.done <- &sequencer.Result{State: sequencer.StateIdle, Err: sequencer.ErrSequenceReset}
	return f.handles
}

func TestAwaitSequenceInterrupted(t *testing.T) {
	hash := common.HexToHash("0x03")
	seq := &fakeResetter{
		handles: []types.TxHandle{{Kind: types.TxKindApprove, Method: "approve", Hash: hash, Status: types.TxPending}},
		done:    make(chan *sequencer.Result, 1),
	}
	sigs := make(chan os.Signal, 1)
	sigs <- os.Interrupt

	var out bytes.Buffer
	err := awaitSequence(&out, log.NewNopLogger(), seq, seq.done, sigs)
	require.ErrorIs(t, err, errInterrupted)
	assert.Equal(t, 1, seq.resets)
	assert.Empty(t, seq.done, "the outcome must be drained before returning")
	assert.Contains(t, out.String(), "approve "+hash.Hex())
}

func TestAwaitSequenceOutcome(t *testing.T) {
	seq := &fakeResetter{done: make(chan *sequencer.Result, 1)}
	seq.done <- &sequencer.Result{State: sequencer.StateFailed, Err: errors.New("nonce too low")}

	var out bytes.Buffer
	err := awaitSequence(&out, log.NewNopLogger(), seq, seq.done, make(chan os.Signal))
	require.EqualError(t, err, "nonce too low")
	assert.Zero(t, seq.resets)
	assert.Contains(t, out.String(), "Failed: nonce too low")
}

func TestPrintTransition(t *testing.T) {
	var out bytes.Buffer
	cb := printTransition(&out)

	hash := common.HexToHash("0x01")
	require.NoError(t, cb(sequencer.StateChange{
		Kind: types.IntentOrder,
		From: sequencer.StateAwaitingApproveSignature,
		To:   sequencer.StateAwaitingApproveConfirmation,
		Status: sequencer.Status{
			Approve: &types.TxHandle{Kind: types.TxKindApprove, Method: "approve", Hash: hash},
		},
	}))
	require.NoError(t, cb(sequencer.StateChange{
		Kind: types.IntentOrder,
		From: sequencer.StateAwaitingActionConfirmation,
		To:   sequencer.StateCompleted,
	}))
	// other payloads are ignored
	require.NoError(t, cb("unrelated"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[order] awaiting_approve_signature -> awaiting_approve_confirmation ("+hash.Hex()+")", lines[0])
	assert.Equal(t, "[order] awaiting_action_confirmation -> completed", lines[1])
}

func TestPrintUnresolved(t *testing.T) {
	var out bytes.Buffer
	printUnresolved(&out, nil)
	assert.Contains(t, out.String(), "nothing was submitted")

	out.Reset()
	hash := common.HexToHash("0x02")
	printUnresolved(&out, []types.TxHandle{{Method: "placeOrder", Hash: hash}})
	assert.Contains(t, out.String(), "may still confirm")
	assert.Contains(t, out.String(), "placeOrder "+hash.Hex())
}

func TestPrintResult(t *testing.T) {
	hash := common.HexToHash("0x03")
	order := types.NewOrderIntent(big.NewInt(1), big.NewInt(2))

	cases := []struct {
		name string
		res  *sequencer.Result
		err  error
		want []string
	}{
		{"admission error", nil, sequencer.ErrSequenceInFlight, nil},
		{"failed", &sequencer.Result{State: sequencer.StateFailed}, errors.New("reverted"), []string{"Failed: reverted"}},
		{
			"completed without approval",
			&sequencer.Result{
				State:           sequencer.StateCompleted,
				Pending:         &types.PendingIntent{Intent: order},
				Action:          &types.TxHandle{Method: "placeOrder", Hash: hash},
				ApprovalSkipped: true,
			},
			nil,
			[]string{"approval skipped", "Completed: placeOrder confirmed in " + hash.Hex()},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			printResult(&out, tc.res, tc.err)
			if tc.want == nil {
				assert.Empty(t, out.String())
			}
			for _, w := range tc.want {
				assert.Contains(t, out.String(), w)
			}
		})
	}
}

func TestParseBig(t *testing.T) {
	v, err := parseBig("quantity", "12345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567890", v.String())

	for _, bad := range []string{"", "1.5", "abc", "0x10"} {
		_, err := parseBig("quantity", bad)
		assert.Error(t, err, bad)
	}
}

func TestPrinter(t *testing.T) {
	newCmd := func(format string) (*cobra.Command, *bytes.Buffer) {
		cmd := &cobra.Command{Use: "x"}
		cmd.Flags().String(cli.OutputFlag, format, "")
		var out bytes.Buffer
		cmd.SetOut(&out)
		return cmd, &out
	}

	cmd, _ := newCmd("yaml")
	_, err := newPrinter(cmd, 18, "AGT")
	require.Error(t, err)

	products := []types.Product{
		{ID: big.NewInt(1), Name: "Tomato", Price: big.NewInt(1_500_000_000_000_000_000), Unit: "kg", Stock: big.NewInt(10)},
		{ID: big.NewInt(2), Name: "Maize", Price: big.NewInt(1_000_000_000_000_000_000), Unit: "bag", Stock: big.NewInt(0)},
	}

	cmd, out := newCmd(outputText)
	p, err := newPrinter(cmd, 18, "AGT")
	require.NoError(t, err)
	require.NoError(t, p.products(products))
	text := out.String()
	assert.Contains(t, text, "Tomato")
	assert.Contains(t, text, "1.5 AGT")
	assert.Contains(t, text, "growing")

	cmd, out = newCmd(outputJSON)
	p, err = newPrinter(cmd, 18, "AGT")
	require.NoError(t, err)
	require.NoError(t, p.products(products))
	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Len(t, decoded, 2)
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	VersionCmd.SetOut(&out)
	t.Cleanup(func() { VersionCmd.SetOut(nil) })

	require.NoError(t, VersionCmd.Flags().Set("verbose", "true"))
	t.Cleanup(func() { _ = VersionCmd.Flags().Set("verbose", "false") })
	require.NoError(t, VersionCmd.RunE(VersionCmd, nil))

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.NotEmpty(t, info)
}

func TestInitImportsKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	conf := clearConfig(t, dir)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	env := map[string]string{
		conf.Chain.KeyEnv:        hex.EncodeToString(crypto.FromECDSA(key)),
		conf.Chain.PassphraseEnv: "correct horse",
	}
	t.Cleanup(func() {
		for k := range env {
			os.Unsetenv(k)
		}
	})

	root := RootCommand(conf, log.NewNopLogger())
	root.AddCommand(MakeInitFilesCommand(conf, log.NewNopLogger()))
	var out bytes.Buffer
	root.SetOut(&out)

	require.NoError(t, RunWithArgs(ctx, root, []string{root.Use, "init", "--home", dir, "--import-key"}, env))

	require.FileExists(t, filepath.Join(dir, "config", "config.toml"))
	addr, err := wallet.KeystoreAddress(conf.Chain.KeystoreFile())
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)
	assert.Contains(t, out.String(), addr.Hex())

	signer, err := wallet.LoadKeystore(conf.Chain.KeystoreFile(), "correct horse", conf.Chain.ChainIDBig())
	require.NoError(t, err)
	assert.Equal(t, addr, signer.Address())
}

func TestTransactionsCommand(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	conf := clearConfig(t, dir)

	journal, err := openJournal(conf)
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Second)
	confirmed := types.TxRecord{
		TxHandle:    types.TxHandle{Kind: types.TxKindApprove, Method: "approve", Hash: common.HexToHash("0x0a"), Status: types.TxConfirmed},
		IntentKind:  types.IntentOrder,
		SubmittedAt: now.Add(-time.Minute),
	}
	pending := types.TxRecord{
		TxHandle:    types.TxHandle{Kind: types.TxKindAction, Method: "placeOrder", Hash: common.HexToHash("0x0b"), Status: types.TxPending},
		IntentKind:  types.IntentOrder,
		SubmittedAt: now,
	}
	require.NoError(t, journal.Save(confirmed))
	require.NoError(t, journal.Save(pending))
	require.NoError(t, journal.Close())

	run := func(args ...string) []types.TxRecord {
		conf := clearConfig(t, "")
		root := RootCommand(conf, log.NewNopLogger())
		root.AddCommand(MakeTransactionsCommand(conf))
		var out bytes.Buffer
		root.SetOut(&out)

		args = append([]string{root.Use, "transactions", "--home", dir, "-o", "json"}, args...)
		require.NoError(t, RunWithArgs(ctx, root, args, nil))

		var recs []types.TxRecord
		require.NoError(t, json.Unmarshal(out.Bytes(), &recs))
		return recs
	}

	all := run()
	require.Len(t, all, 2)
	assert.Equal(t, pending.Hash, all[0].Hash)
	assert.Equal(t, confirmed.Hash, all[1].Hash)

	onlyPending := run("--pending")
	require.Len(t, onlyPending, 1)
	assert.Equal(t, pending.Hash, onlyPending[0].Hash)

	limited := run("--limit", "1")
	require.Len(t, limited, 1)
}
