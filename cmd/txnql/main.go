package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/jask/txnql/internal/config"
	"github.com/jask/txnql/internal/database"
	"github.com/jask/txnql/internal/database/repository"
	"github.com/jask/txnql/internal/icons"
	"github.com/jask/txnql/internal/logging"
	"github.com/jask/txnql/internal/plaid"
	"github.com/jask/txnql/internal/query"
	"github.com/jask/txnql/internal/secrets"
	"github.com/jask/txnql/internal/service"
)

const usage = `usage: txnql <command> [args]

commands:
  query <terms...>                       search stored transactions
  sync                                   pull changes for every linked item
  accounts                               list stored accounts
  set-category <identity> <category-id>  record a category override
  recategorize <category-id> [flags]     bulk-correct stored rows and record override
      -merchant-id <id> | -merchant <name> | -text <raw>
  link-token [item-id]                   create a link token (optionally for re-auth)
  exchange <public-token>                store a newly linked item
  set-credential <name> <value>          store client_id, secret or user_id
`

func main() {
	_ = godotenv.Load()

	log := logging.New()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	database.SetRankWeights(cfg.Search.TextWeight, cfg.Search.MerchantWeight)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatal().Err(err).Msg("mkdir db dir")
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	app := &app{
		cfg: cfg,
		log: log,

		transactions: repository.NewTransactionRepo(db),
		accounts:     repository.NewAccountRepo(db),
		categories:   repository.NewCategoryRepo(db),
		overrides:    repository.NewOverrideRepo(db),
		ingests:      repository.NewIngestRepo(db),
	}
	app.resolver = &service.CategoryResolver{
		Overrides:    app.overrides,
		Categories:   app.categories,
		Transactions: app.transactions,
	}

	ctx := logging.WithContext(context.Background(), log)
	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("command failed")
	}
}

type app struct {
	cfg config.Config
	log zerolog.Logger

	transactions *repository.TransactionRepo
	accounts     *repository.AccountRepo
	categories   *repository.CategoryRepo
	overrides    *repository.OverrideRepo
	ingests      *repository.IngestRepo
	resolver     *service.CategoryResolver
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "query":
		return a.query(ctx, strings.Join(args, " "))
	case "sync":
		return a.sync(ctx)
	case "accounts":
		return a.listAccounts(ctx)
	case "set-category":
		return a.setCategory(ctx, args)
	case "recategorize":
		return a.recategorize(ctx, args)
	case "link-token":
		return a.linkToken(ctx, args)
	case "exchange":
		return a.exchange(ctx, args)
	case "set-credential":
		return a.setCredential(args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) query(ctx context.Context, raw string) error {
	engine := &query.Engine{
		Transactions: a.transactions,
		Accounts:     a.accounts,
		Log:          a.log,
	}
	results, err := engine.Search(ctx, raw)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, t := range results {
		merchant := t.RawText
		if t.Merchant != nil {
			merchant = *t.Merchant
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.PostDate.Format("2006-01-02"), t.Amount.StringFixed(2), t.Currency, merchant, t.CategoryPath)
	}
	return w.Flush()
}

func (a *app) sync(ctx context.Context) error {
	store, client, err := a.provider()
	if err != nil {
		return err
	}
	iconCache, err := icons.New(a.cfg.Icons.Dir, a.log)
	if err != nil {
		a.log.Warn().Err(err).Msg("icon cache unavailable")
		iconCache = nil
	}
	syncer := &service.SyncService{
		Client:       client,
		Secrets:      store,
		Transactions: a.transactions,
		Accounts:     a.accounts,
		Categories:   a.categories,
		Ingests:      a.ingests,
		Resolver:     a.resolver,
		Icons:        iconCache,
		Log:          a.log,
	}
	res, err := syncer.UpdateAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("added %d, skipped %d, failed %d\n", res.Added, res.Skipped, res.Failed)
	return nil
}

func (a *app) listAccounts(ctx context.Context) error {
	accounts, err := a.accounts.List(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, acc := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", acc.AccountID, acc.Name, acc.OfficialName, acc.Subtype)
	}
	return w.Flush()
}

func (a *app) setCategory(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: set-category <identity> <category-id>")
	}
	categoryID, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("category id %q: %w", args[1], err)
	}
	return a.resolver.SetOverride(ctx, args[0], categoryID)
}

func (a *app) recategorize(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recategorize", flag.ContinueOnError)
	merchantID := fs.String("merchant-id", "", "target rows by merchant id")
	merchant := fs.String("merchant", "", "target rows by merchant name")
	text := fs.String("text", "", "target rows by raw description")
	if len(args) < 1 {
		return fmt.Errorf("usage: recategorize <category-id> [flags]")
	}
	categoryID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("category id %q: %w", args[0], err)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *merchantID == "" && *merchant == "" && *text == "" {
		return fmt.Errorf("one of -merchant-id, -merchant or -text is required")
	}
	n, err := a.resolver.UpdateStoredCategory(ctx, categoryID, *merchantID, *merchant, *text)
	if err != nil {
		return err
	}
	fmt.Printf("updated %d transactions\n", n)
	return nil
}

func (a *app) linkToken(ctx context.Context, args []string) error {
	store, client, err := a.provider()
	if err != nil {
		return err
	}
	var item *plaid.Item
	if len(args) == 1 {
		items := map[string]plaid.Item{}
		if _, err := store.Get("items", &items); err != nil {
			return err
		}
		found, ok := items[args[0]]
		if !ok {
			return fmt.Errorf("unknown item %q", args[0])
		}
		item = &found
	}
	token, err := client.GetLinkToken(ctx, item)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func (a *app) exchange(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: exchange <public-token>")
	}
	store, client, err := a.provider()
	if err != nil {
		return err
	}
	item, err := client.ExchangePublicToken(ctx, args[0])
	if err != nil {
		return err
	}
	items := map[string]plaid.Item{}
	if _, err := store.Get("items", &items); err != nil {
		return err
	}
	items[item.ItemID] = *item
	if err := store.Set("items", items); err != nil {
		return err
	}
	if err := store.Flush(); err != nil {
		return err
	}
	fmt.Printf("linked item %s\n", item.ItemID)
	return nil
}

func (a *app) setCredential(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: set-credential <name> <value>")
	}
	name := strings.ToLower(args[0])
	switch name {
	case "client_id", "secret", "user_id":
	default:
		return fmt.Errorf("unknown credential %q (want client_id, secret or user_id)", args[0])
	}
	store, err := secrets.Open(a.cfg.Plaid.Environment)
	if err != nil {
		return err
	}
	if err := store.Set(name, args[1]); err != nil {
		return err
	}
	return store.Flush()
}

// provider opens the secret store and builds an API client from the stored
// credentials.
func (a *app) provider() (*secrets.Store, *plaid.Client, error) {
	store, err := secrets.Open(a.cfg.Plaid.Environment)
	if err != nil {
		return nil, nil, err
	}
	clientID, err := store.GetString("client_id")
	if err != nil {
		return nil, nil, err
	}
	secret, err := store.GetString("secret")
	if err != nil {
		return nil, nil, err
	}
	userID, err := store.GetString("user_id")
	if err != nil {
		return nil, nil, err
	}
	if clientID == "" || secret == "" {
		return nil, nil, fmt.Errorf("credentials missing; run set-credential first")
	}
	return store, plaid.New(clientID, secret, userID, a.cfg.Plaid.Environment, a.log), nil
}
