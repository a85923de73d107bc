//go:build integration

package db

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemadiff/internal/schema"
)

var mysqlFixture = []string{
	`CREATE TABLE sd_users (
		id INT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		status ENUM('active', 'inactive') NOT NULL DEFAULT 'active',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	) COMMENT = 'registered accounts'`,
	`CREATE TABLE sd_orders (
		id INT AUTO_INCREMENT PRIMARY KEY,
		user_id INT NOT NULL,
		total DECIMAL(10,2) NOT NULL,
		CONSTRAINT fk_orders_user FOREIGN KEY (user_id) REFERENCES sd_users (id) ON DELETE CASCADE,
		CONSTRAINT chk_total CHECK (total >= 0)
	)`,
	`CREATE INDEX idx_orders_total ON sd_orders (total)`,
	`CREATE VIEW sd_big_orders AS SELECT id, total FROM sd_orders WHERE total > 100`,
	`CREATE TRIGGER sd_orders_bi BEFORE INSERT ON sd_orders FOR EACH ROW SET NEW.total = ROUND(NEW.total, 2)`,
	`CREATE FUNCTION sd_double(x INT) RETURNS INT DETERMINISTIC RETURN x * 2`,
}

var mysqlFixtureCleanup = []string{
	`DROP FUNCTION IF EXISTS sd_double`,
	`DROP VIEW IF EXISTS sd_big_orders`,
	`DROP TABLE IF EXISTS sd_orders`,
	`DROP TABLE IF EXISTS sd_users`,
}

func mysqlTestURL() string {
	if url := os.Getenv("MYSQL_TEST_URL"); url != "" {
		return url
	}
	return "root:testpassword@tcp(localhost:3306)/testdb"
}

func newMySQLFixture(t *testing.T) *MySQLClient {
	t.Helper()
	ctx := context.Background()

	client, err := NewMySQLClient(ctx, mysqlTestURL())
	require.NoError(t, err, "failed to connect to MySQL")

	run := func(stmts []string) error {
		for _, stmt := range stmts {
			if _, err := client.GetDB().ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}
	require.NoError(t, run(mysqlFixtureCleanup))
	require.NoError(t, run(mysqlFixture))

	t.Cleanup(func() {
		_ = run(mysqlFixtureCleanup)
		_ = client.Close()
	})
	return client
}

func TestMySQLExtraction(t *testing.T) {
	ctx := context.Background()
	client := newMySQLFixture(t)

	snap, err := NewMySQLExtractor(client, client.DatabaseName()).ExtractSnapshot(ctx, []string{"sd_users", "sd_orders"})
	require.NoError(t, err)
	require.NoError(t, snap.Validate())

	verifyTablesExist(t, snap, []string{"sd_orders", "sd_users"})

	users := findTable(snap, "sd_users")
	require.NotNil(t, users)
	assert.Empty(t, users.Schema)
	require.NotNil(t, users.Comment)
	assert.Equal(t, "registered accounts", *users.Comment)
	require.NotNil(t, users.PrimaryKey)
	assert.Empty(t, users.PrimaryKey.Name)
	assert.Equal(t, []string{"id"}, users.PrimaryKey.Columns)

	id := findColumn(users, "id")
	require.NotNil(t, id)
	assert.True(t, id.IsAutoIncrement)
	assert.True(t, id.IsPrimaryKey)

	status := findColumn(users, "status")
	require.NotNil(t, status)
	assert.Equal(t, "enum('active','inactive')", status.Type)
	require.NotNil(t, status.DefaultValue)
	assert.Equal(t, "'active'", *status.DefaultValue)

	assert.True(t, findColumn(users, "username").IsUnique)

	orders := findTable(snap, "sd_orders")
	require.NotNil(t, orders)
	require.Len(t, orders.ForeignKeys, 1)
	fk := orders.ForeignKeys[0]
	assert.Equal(t, "fk_orders_user", fk.Name)
	assert.Empty(t, fk.ReferencedSchema)
	assert.Equal(t, "sd_users", fk.ReferencedTable)
	assert.Equal(t, schema.Cascade, fk.OnDelete)

	var indexNames []string
	for _, idx := range orders.Indexes {
		indexNames = append(indexNames, idx.Name)
	}
	assert.Contains(t, indexNames, "idx_orders_total")

	total := findColumn(orders, "total")
	require.NotNil(t, total)
	require.NotNil(t, total.Precision)
	assert.Equal(t, 10, *total.Precision)
	assert.Equal(t, 2, *total.Scale)

	var views []string
	for _, v := range snap.Views {
		views = append(views, v.Name)
	}
	assert.Contains(t, views, "sd_big_orders")

	require.Len(t, snap.Triggers, 1)
	tr := snap.Triggers[0]
	assert.Equal(t, "sd_orders", tr.Table)
	assert.Equal(t, schema.TimingBefore, tr.Timing)
	assert.Equal(t, []schema.TriggerEvent{schema.EventInsert}, tr.Events)
	require.NotNil(t, tr.Definition)
	assert.True(t, strings.HasPrefix(strings.ToUpper(*tr.Definition), "SET NEW.TOTAL"))

	var double *schema.Function
	for i := range snap.Functions {
		if snap.Functions[i].Name == "sd_double" {
			double = &snap.Functions[i]
		}
	}
	require.NotNil(t, double)
	assert.Equal(t, "x int", double.Arguments)
	assert.Equal(t, "int", double.ReturnType)
}
