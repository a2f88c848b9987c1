package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ovenworks/pizzeria/internal/domain/auth"
	"github.com/ovenworks/pizzeria/internal/domain/catalog"
	"github.com/ovenworks/pizzeria/internal/domain/discount"
	"github.com/ovenworks/pizzeria/internal/repository"
)

type menuJSON struct {
	Ingredients []ingredientJSON `json:"ingredients"`
	Pizzas      []pizzaJSON      `json:"pizzas"`
}

type ingredientJSON struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Cost       decimal.Decimal `json:"cost"`
	Vegetarian bool            `json:"vegetarian"`
}

type pizzaJSON struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
}

func main() {
	var (
		databaseURL  string
		menuFile     string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&menuFile, "menu-file", "db/seed/menu.json", "path to menu JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or PIZZA_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PIZZA_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("PIZZA_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or PIZZA_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("PIZZA_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, menuFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, menuFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedMenu(ctx, pool, menuFile); err != nil {
		return errors.Wrap(err, "seed menu")
	}

	if err := seedDiscounts(ctx, pool); err != nil {
		return errors.Wrap(err, "seed discounts")
	}

	if err := seedCouriers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed couriers")
	}

	if err := seedCustomers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed customers")
	}

	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedMenu(ctx context.Context, pool *pgxpool.Pool, menuFile string) error {
	slog.Info("reading menu file", slog.String("path", menuFile))

	data, err := os.ReadFile(menuFile)
	if err != nil {
		return errors.Wrap(err, "read menu file")
	}

	var menu menuJSON
	if err := json.Unmarshal(data, &menu); err != nil {
		return errors.Wrap(err, "parse menu JSON")
	}

	slog.Info("upserting ingredients", slog.Int("count", len(menu.Ingredients)))

	byID := make(map[string]catalog.Ingredient, len(menu.Ingredients))
	for _, ing := range menu.Ingredients {
		if _, err := pool.Exec(ctx, `
			INSERT INTO ingredients (id, name, cost, vegetarian)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, cost = EXCLUDED.cost, vegetarian = EXCLUDED.vegetarian`,
			ing.ID, ing.Name, ing.Cost, ing.Vegetarian,
		); err != nil {
			return errors.Wrapf(err, "upsert ingredient %s", ing.ID)
		}
		byID[ing.ID] = catalog.Ingredient{
			ID:         ing.ID,
			Name:       ing.Name,
			Cost:       ing.Cost,
			Vegetarian: ing.Vegetarian,
		}
	}

	pricer := catalog.NewPricer(catalog.DefaultPricingConfig())

	slog.Info("upserting pizzas", slog.Int("count", len(menu.Pizzas)))

	for _, p := range menu.Pizzas {
		pizza := catalog.Pizza{ID: p.ID, Name: p.Name, Description: p.Description}
		for _, ingID := range p.Ingredients {
			ing, ok := byID[ingID]
			if !ok {
				return errors.Errorf("pizza %s references unknown ingredient %s", p.ID, ingID)
			}
			pizza.Ingredients = append(pizza.Ingredients, ing)
		}
		price := pricer.CatalogPrice(pizza)

		if _, err := pool.Exec(ctx, `
			INSERT INTO pizzas (id, name, description, price)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price`,
			p.ID, p.Name, p.Description, price,
		); err != nil {
			return errors.Wrapf(err, "upsert pizza %s", p.ID)
		}

		if _, err := pool.Exec(ctx, `DELETE FROM pizza_ingredients WHERE pizza_id = $1`, p.ID); err != nil {
			return errors.Wrapf(err, "clear ingredients of pizza %s", p.ID)
		}
		for _, ingID := range p.Ingredients {
			if _, err := pool.Exec(ctx, `
				INSERT INTO pizza_ingredients (pizza_id, ingredient_id) VALUES ($1, $2)`,
				p.ID, ingID,
			); err != nil {
				return errors.Wrapf(err, "link pizza %s to ingredient %s", p.ID, ingID)
			}
		}

		slog.Info("upserted pizza",
			slog.String("id", p.ID),
			slog.String("name", p.Name),
			slog.String("price", price.StringFixed(2)),
		)
	}

	return nil
}

func seedDiscounts(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding discount types and codes")

	types := []struct {
		ID      string
		Name    string
		Percent decimal.Decimal
	}{
		{ID: "dt-promo", Name: discount.NameOneTimePromo, Percent: decimal.NewFromInt(20)},
		{ID: "dt-birthday", Name: discount.NameBirthday, Percent: decimal.Zero},
		{ID: "dt-loyalty", Name: discount.NameLoyaltyReward, Percent: decimal.NewFromInt(10)},
	}
	for _, dt := range types {
		if _, err := pool.Exec(ctx, `
			INSERT INTO discount_types (id, name, percent)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET percent = EXCLUDED.percent`,
			dt.ID, dt.Name, dt.Percent,
		); err != nil {
			return errors.Wrapf(err, "upsert discount type %s", dt.Name)
		}
	}

	codes := []struct {
		ID     string
		Code   string
		TypeID string
	}{
		{ID: "dc-welcome20", Code: "WELCOME20", TypeID: "dt-promo"},
		{ID: "dc-bdaytreat", Code: "BDAYTREAT", TypeID: "dt-birthday"},
		{ID: "dc-tenthpizza", Code: "TENTHPIZZA", TypeID: "dt-loyalty"},
	}
	for _, dc := range codes {
		if _, err := pool.Exec(ctx, `
			INSERT INTO discount_codes (id, code, discount_type_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (code) DO NOTHING`,
			dc.ID, dc.Code, dc.TypeID,
		); err != nil {
			return errors.Wrapf(err, "upsert discount code %s", dc.Code)
		}

		slog.Info("upserted discount code", slog.String("code", dc.Code))
	}

	return nil
}

func seedCouriers(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding couriers and postal ranges")

	couriers := []struct {
		ID     string
		Name   string
		Ranges [][2]int
	}{
		{ID: "courier-luca", Name: "Luca", Ranges: [][2]int{{10000, 10499}}},
		{ID: "courier-sofia", Name: "Sofia", Ranges: [][2]int{{10500, 10999}}},
		{ID: "courier-matteo", Name: "Matteo", Ranges: [][2]int{{10000, 10999}, {11000, 11499}}},
	}
	for _, c := range couriers {
		if _, err := pool.Exec(ctx, `
			INSERT INTO delivery_persons (id, name)
			VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			c.ID, c.Name,
		); err != nil {
			return errors.Wrapf(err, "upsert courier %s", c.ID)
		}

		if _, err := pool.Exec(ctx, `DELETE FROM postal_ranges WHERE delivery_person_id = $1`, c.ID); err != nil {
			return errors.Wrapf(err, "clear postal ranges of %s", c.ID)
		}
		for i, rng := range c.Ranges {
			if _, err := pool.Exec(ctx, `
				INSERT INTO postal_ranges (id, delivery_person_id, start_zip, end_zip)
				VALUES ($1, $2, $3, $4)`,
				fmt.Sprintf("%s-range-%d", c.ID, i), c.ID, rng[0], rng[1],
			); err != nil {
				return errors.Wrapf(err, "insert postal range for %s", c.ID)
			}
		}

		slog.Info("upserted courier", slog.String("id", c.ID), slog.Int("ranges", len(c.Ranges)))
	}

	return nil
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo customers")

	customers := []struct {
		ID         string
		FirstName  string
		LastName   string
		Email      string
		PostalCode string
		BirthDate  string
	}{
		{ID: "cust-ada", FirstName: "Ada", LastName: "Rossi", Email: "ada@example.com", PostalCode: "10050", BirthDate: "1990-03-15"},
		{ID: "cust-bruno", FirstName: "Bruno", LastName: "Bianchi", Email: "bruno@example.com", PostalCode: "10750", BirthDate: "1985-11-02"},
		{ID: "cust-carla", FirstName: "Carla", LastName: "Verdi", Email: "carla@example.com", PostalCode: "11200", BirthDate: "1998-07-21"},
	}
	for _, c := range customers {
		if _, err := pool.Exec(ctx, `
			INSERT INTO customers (id, first_name, last_name, email, postal_code, date_of_birth)
			VALUES ($1, $2, $3, $4, $5, $6::date)
			ON CONFLICT (id) DO NOTHING`,
			c.ID, c.FirstName, c.LastName, c.Email, c.PostalCode, c.BirthDate,
		); err != nil {
			return errors.Wrapf(err, "upsert customer %s", c.ID)
		}

		slog.Info("upserted customer", slog.String("id", c.ID))
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if _, err := pool.Exec(ctx, `
		INSERT INTO api_keys (id, key_hash, name, scopes, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash, scopes = EXCLUDED.scopes`,
		"default-admin", keyHash, "Default admin key", []string{auth.ScopeAdmin},
	); err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}

	slog.Info("upserted API key", slog.String("id", "default-admin"))

	return nil
}
