package schema

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	return db
}

const testSchema = `
CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT);
CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users (id), title TEXT);
CREATE INDEX idx_users_email ON users (email);
CREATE INDEX idx_posts_user ON posts (user_id);
CREATE VIEW v_users AS SELECT id, name FROM users;
CREATE VIEW v_user_posts AS SELECT u.name, p.title FROM users u JOIN posts p ON p.user_id = u.id;
CREATE VIEW v_named AS SELECT name FROM v_users;
CREATE TRIGGER trg_posts AFTER INSERT ON posts BEGIN UPDATE users SET email = email WHERE id = NEW.user_id; END;
`

func loadTestSchema(t *testing.T) (*sql.DB, *Schema) {
	t.Helper()
	db := openTestDB(t)
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	s, err := Load(context.Background(), db)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return db, s
}

func TestLoad(t *testing.T) {
	_, s := loadTestSchema(t)

	if got := len(s.Category("table")); got != 2 {
		t.Errorf("tables = %d, want 2", got)
	}
	if got := len(s.Category("index")); got != 2 {
		t.Errorf("indexes = %d, want 2", got)
	}
	if got := len(s.Category("view")); got != 3 {
		t.Errorf("views = %d, want 3", got)
	}
	if got := len(s.Category("trigger")); got != 1 {
		t.Errorf("triggers = %d, want 1", got)
	}

	users := s.Get("table", "USERS")
	if users == nil {
		t.Fatal("case-insensitive Get failed")
	}
	if users.Table == nil || len(users.Table.Columns) != 3 {
		t.Errorf("users not parsed: %+v", users)
	}
}

func TestRelated_Table(t *testing.T) {
	_, s := loadTestSchema(t)

	rel := s.Related("table", "users", false)

	if names := objectNames(rel["index"]); len(names) != 1 || names[0] != "idx_users_email" {
		t.Errorf("related indexes = %v", names)
	}
	views := objectNames(rel["view"])
	if len(views) != 3 {
		t.Errorf("related views = %v, want v_users, v_user_posts, v_named", views)
	}
	// trg_posts updates users in its body.
	if names := objectNames(rel["trigger"]); len(names) != 1 || names[0] != "trg_posts" {
		t.Errorf("related triggers = %v", names)
	}
	// posts references users via FK.
	if names := objectNames(rel["table"]); len(names) != 1 || names[0] != "posts" {
		t.Errorf("related tables = %v", names)
	}
}

func TestRelated_Own(t *testing.T) {
	_, s := loadTestSchema(t)

	rel := s.Related("table", "posts", true)
	if names := objectNames(rel["index"]); len(names) != 1 || names[0] != "idx_posts_user" {
		t.Errorf("own indexes = %v", names)
	}
	if names := objectNames(rel["trigger"]); len(names) != 1 || names[0] != "trg_posts" {
		t.Errorf("own triggers = %v", names)
	}
	if len(rel["view"]) != 0 {
		t.Errorf("own should not include views, got %v", objectNames(rel["view"]))
	}
}

func TestReferencingTables(t *testing.T) {
	_, s := loadTestSchema(t)

	refs := s.ReferencingTables("users")
	if len(refs) != 1 || refs[0].Name != "posts" {
		t.Errorf("referencing tables = %v", objectNames(refs))
	}
	if got := s.ReferencingTables("posts"); len(got) != 0 {
		t.Errorf("posts should have no referencing tables, got %v", objectNames(got))
	}
}

func TestColumnDependents(t *testing.T) {
	_, s := loadTestSchema(t)

	deps := s.ColumnDependents("users", "name")
	if got := deps["view"]; len(got) != 2 {
		t.Errorf("views depending on users.name = %v, want v_users and v_user_posts", got)
	}

	deps = s.ColumnDependents("users", "email")
	if got := deps["trigger"]; len(got) != 1 || got[0] != "trg_posts" {
		t.Errorf("triggers depending on users.email = %v", got)
	}
}

func TestUniqueName(t *testing.T) {
	_, s := loadTestSchema(t)

	if got := s.UniqueName("brand_new"); got != "brand_new" {
		t.Errorf("UniqueName = %q", got)
	}
	got := s.UniqueName("users")
	if got == "users" || s.Get("table", got) != nil {
		t.Errorf("UniqueName collided: %q", got)
	}
	if got2 := s.UniqueName("users", got); got2 == got || got2 == "users" {
	} else if got2 == "" {
		t.Errorf("UniqueName with extra returned empty")
	}
}

func TestLoadCapabilities(t *testing.T) {
	db := openTestDB(t)
	caps, err := LoadCapabilities(context.Background(), db)
	if err != nil {
		t.Fatalf("LoadCapabilities: %v", err)
	}
	// modernc.org/sqlite bundles a current SQLite; both forms are present.
	if !caps.RenameColumn || !caps.DropColumn {
		t.Errorf("capabilities = %+v", caps)
	}
}

func TestCount(t *testing.T) {
	db, _ := loadTestSchema(t)
	if _, err := db.Exec(`INSERT INTO users (name) VALUES ('a'), ('b')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	n, err := Count(context.Background(), db, "users")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func objectNames(objs []*Object) []string {
	names := make([]string, len(objs))
	for i, o := range objs {
		names[i] = o.Name
	}
	return names
}
