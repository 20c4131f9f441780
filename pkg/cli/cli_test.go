package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/promptshot/pkg/repository"
	"github.com/m-mizutani/promptshot/pkg/usecase/history"
)

func TestRunGenerate(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "store.db")
	catalog := writeCatalog(t)

	for _, prompt := range []string{"a cat", "a dog"} {
		err := Run(ctx, []string{"promptshot", "generate",
			"--store", storeSQLite,
			"--db-path", dbPath,
			"--catalog", catalog,
			prompt,
		})
		gt.True(t, err == nil)
	}

	repo, err := repository.NewSQLite(ctx, dbPath)
	gt.NoError(t, err)
	defer repo.Close()

	entries := history.New(repo).Load(ctx)
	gt.A(t, entries).Length(2)
	gt.Equal(t, entries[0].Prompt, "a dog")
	gt.Equal(t, entries[1].Prompt, "a cat")
	gt.Equal(t, entries[0].ImageURL, testImageURL)
}

func TestRunGenerateEmptyPrompt(t *testing.T) {
	err := Run(context.Background(), []string{"promptshot", "generate",
		"--store", storeMemory,
		"--catalog", writeCatalog(t),
	})
	gt.V(t, err).NotNil()
	gt.Equal(t, err.Code, 1)
	gt.Equal(t, err.Message, "Please enter a prompt first")
}

func TestRunHistoryNegativeLimit(t *testing.T) {
	err := Run(context.Background(), []string{"promptshot", "history",
		"--store", storeMemory,
		"--limit", "-1",
	})
	gt.V(t, err).NotNil()
}
