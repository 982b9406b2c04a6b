package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agrimarket/agridash/config"
	"github.com/agrimarket/agridash/contracts"
	"github.com/agrimarket/agridash/libs/events"
	"github.com/agrimarket/agridash/libs/log"
	tmos "github.com/agrimarket/agridash/libs/os"
	"github.com/agrimarket/agridash/marketplace"
	"github.com/agrimarket/agridash/sequencer"
	"github.com/agrimarket/agridash/txstore"
	"github.com/agrimarket/agridash/wallet"
)

const journalDBName = "txjournal"

// chain bundles the contract bindings shared by every command that talks to
// the chain.
type chain struct {
	client   *ethclient.Client
	token    *contracts.Token
	market   *contracts.Marketplace
	reader   *marketplace.Reader
	decimals uint8
	symbol   string
}

func dialChain(ctx context.Context, conf *config.Config) (*chain, error) {
	client, err := ethclient.DialContext(ctx, conf.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", conf.Chain.RPCURL, err)
	}
	c := &chain{
		client: client,
		token:  contracts.NewToken(conf.Chain.Token(), client),
		market: contracts.NewMarketplace(conf.Chain.Marketplace(), client),
	}
	c.reader = marketplace.NewReader(c.token, c.market)

	if c.decimals, err = c.reader.Decimals(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("reading token decimals: %w", err)
	}
	if c.symbol, err = c.reader.Symbol(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("reading token symbol: %w", err)
	}
	return c, nil
}

func (c *chain) Close() {
	c.client.Close()
}

// resolveAccount picks the account whose data read commands show: the
// --account flag, the key in the environment, or the keystore address. No
// passphrase is needed.
func resolveAccount(cmd *cobra.Command, conf *config.Config) (common.Address, error) {
	if flag, _ := cmd.Flags().GetString(flagAccount); flag != "" {
		if !common.IsHexAddress(flag) {
			return common.Address{}, fmt.Errorf("invalid account %q", flag)
		}
		return common.HexToAddress(flag), nil
	}
	if os.Getenv(conf.Chain.KeyEnv) != "" {
		s, err := wallet.KeyFromEnv(conf.Chain.KeyEnv, conf.Chain.ChainIDBig())
		if err != nil {
			return common.Address{}, err
		}
		return s.Address(), nil
	}
	path := conf.Chain.KeystoreFile()
	if !tmos.FileExists(path) {
		return common.Address{}, fmt.Errorf("%w: pass --%s, set %s or run `agridash init --import-key`",
			wallet.ErrNoKey, flagAccount, conf.Chain.KeyEnv)
	}
	return wallet.KeystoreAddress(path)
}

// loadSigner returns the account key from the environment or from the
// keystore file. The passphrase is read from its environment variable or
// prompted for.
func loadSigner(conf *config.Config) (*wallet.KeySigner, error) {
	chainID := conf.Chain.ChainIDBig()
	if os.Getenv(conf.Chain.KeyEnv) != "" {
		return wallet.KeyFromEnv(conf.Chain.KeyEnv, chainID)
	}

	path := conf.Chain.KeystoreFile()
	if !tmos.FileExists(path) {
		return nil, fmt.Errorf("%w: no keystore at %s and %s is unset", wallet.ErrNoKey, path, conf.Chain.KeyEnv)
	}
	pass, ok := os.LookupEnv(conf.Chain.PassphraseEnv)
	if !ok {
		var err error
		if pass, err = readPassphrase("Keystore passphrase: ", conf.Chain.PassphraseEnv); err != nil {
			return nil, err
		}
	}
	return wallet.LoadKeystore(path, pass, chainID)
}

func readPassphrase(prompt, env string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; set %s", env)
	}
	fmt.Fprint(os.Stderr, prompt)
	bz, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(bz), nil
}

// node is everything a command that writes to the chain needs.
type node struct {
	*chain
	logger    log.Logger
	account   common.Address
	evsw      events.EventSwitch
	journal   *txstore.Store
	state     *marketplace.State
	sequencer *sequencer.Sequencer
}

func newNode(
	ctx context.Context,
	conf *config.Config,
	logger log.Logger,
	signer wallet.Signer,
	seqMetrics *sequencer.Metrics,
) (*node, error) {
	c, err := dialChain(ctx, conf)
	if err != nil {
		return nil, err
	}

	journal, err := openJournal(conf)
	if err != nil {
		c.Close()
		return nil, err
	}

	n := &node{
		chain:   c,
		logger:  logger,
		account: signer.Address(),
		evsw:    events.NewEventSwitch(),
		journal: journal,
	}
	n.state = marketplace.NewState(logger.With("module", "marketplace"), c.reader, n.account)

	w := wallet.New(logger.With("module", "wallet"), c.client, signer,
		wallet.WithPollInterval(conf.Chain.PollInterval),
		wallet.WithConfirmations(conf.Chain.Confirmations),
		wallet.WithGasMultiplier(conf.Chain.GasMultiplier),
	)
	n.sequencer = sequencer.New(logger.With("module", "sequencer"), w, c.reader, c.token, c.market,
		sequencer.WithInvalidator(n.state),
		sequencer.WithEventSwitch(n.evsw),
		sequencer.WithJournal(n.journal),
		sequencer.WithMetrics(seqMetrics),
	)
	return n, nil
}

func (n *node) Close() {
	if err := n.journal.Close(); err != nil {
		n.logger.Error("failed to close transaction journal", "err", err)
	}
	n.chain.Close()
}

// openJournal opens the transaction journal without touching the chain.
func openJournal(conf *config.Config) (*txstore.Store, error) {
	db, err := config.DefaultDBProvider(journalDBName, conf)
	if err != nil {
		return nil, fmt.Errorf("opening transaction journal: %w", err)
	}
	return txstore.New(db), nil
}
