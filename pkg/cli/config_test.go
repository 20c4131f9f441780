package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/promptshot/pkg/model"
	"github.com/m-mizutani/promptshot/pkg/repository"
	"github.com/m-mizutani/promptshot/pkg/usecase/history"
)

const testPolicy = `package prompt

deny contains "prompt mentions a forbidden word" if {
	contains(lower(input.prompt), "forbidden")
}
`

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := "images:\n  - " + testImageURL + "\ndelay_ms: 0\n"
	gt.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewKVS(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := config{store: storeMemory}
		kvs, closeKVS, err := cfg.newKVS(ctx)
		gt.NoError(t, err)
		defer closeKVS()

		gt.NoError(t, kvs.Set(ctx, "k", "v"))
		v, found, err := kvs.Get(ctx, "k")
		gt.NoError(t, err)
		gt.True(t, found)
		gt.Equal(t, v, "v")
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := config{store: storeSQLite, dbPath: filepath.Join(t.TempDir(), "nested", "store.db")}
		kvs, closeKVS, err := cfg.newKVS(ctx)
		gt.NoError(t, err)
		defer closeKVS()

		gt.NoError(t, kvs.Set(ctx, "k", "v"))
		_, err = os.Stat(cfg.dbPath)
		gt.NoError(t, err)
	})

	t.Run("gcs without bucket", func(t *testing.T) {
		cfg := config{store: storeGCS}
		_, _, err := cfg.newKVS(ctx)
		gt.Error(t, err)
	})

	t.Run("firestore without project", func(t *testing.T) {
		cfg := config{store: storeFirestore}
		_, _, err := cfg.newKVS(ctx)
		gt.Error(t, err)
	})

	t.Run("unsupported", func(t *testing.T) {
		cfg := config{store: "redis"}
		_, _, err := cfg.newKVS(ctx)
		gt.Error(t, err)
	})
}

func TestNewController(t *testing.T) {
	ctx := context.Background()

	policyDir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(policyDir, "prompt.rego"), []byte(testPolicy), 0644))

	cfg := config{
		catalog:   writeCatalog(t),
		policyDir: policyDir,
		timeout:   time.Second,
	}

	store := history.New(repository.NewMemory())
	ctrl, err := cfg.newController(ctx, store)
	gt.NoError(t, err)
	defer ctrl.Close()

	gt.NoError(t, ctrl.SetPrompt("a forbidden cat"))
	_, err = ctrl.Submit(ctx)
	gt.True(t, errors.Is(err, model.ErrPromptRejected))
	gt.Equal(t, ctrl.State().Message, "prompt mentions a forbidden word")

	gt.NoError(t, ctrl.SetPrompt("a cat"))
	entry, err := ctrl.Submit(ctx)
	gt.NoError(t, err)
	gt.Equal(t, entry.ImageURL, testImageURL)
}

func TestNewControllerInvalidCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	gt.NoError(t, os.WriteFile(path, []byte("images: []\n"), 0644))

	cfg := config{catalog: path}
	_, err := cfg.newController(context.Background(), history.New(repository.NewMemory()))
	gt.Error(t, err)
}

func TestNewPolicyEmptyDir(t *testing.T) {
	cfg := config{policyDir: t.TempDir()}
	checker, err := cfg.newPolicy(context.Background())
	gt.NoError(t, err)
	gt.True(t, checker == nil)
}
