//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "fleetwatch/pkg/logx"
)

func TestSQLiteStoreSingleDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memory.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	if _, ok, err := st.Load(ctx); err != nil || ok {
		t.Fatalf("Load on empty db = ok:%v err:%v", ok, err)
	}
	for _, doc := range []string{`{"versions":{"a":1}}`, `{"versions":{"a":2}}`} {
		if err := st.Save(ctx, []byte(doc)); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	b, ok, err := st.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load = ok:%v err:%v", ok, err)
	}
	if string(b) != `{"versions":{"a":2}}` {
		t.Fatalf("unexpected document %q", b)
	}
}
