package chat

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository/sqlite"
)

// Many users submitting at once against a real database file: every
// submission must store exactly one user/assistant pair.
func TestEngine_ConcurrentUsersOnFileDatabase(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "promptcraft.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	engine := NewEngine(Config{
		Store:     db.Transcripts(),
		Completer: &fakeCompleter{reply: "PROMPT_X", delay: time.Millisecond},
		Logger:    slog.New(slog.DiscardHandler),
		AITimeout: time.Second,
	})

	const users, perUser = 32, 10
	sessions := make([]*model.Session, users)
	for i := range sessions {
		u := &model.User{Username: fmt.Sprintf("u%d", i), Email: fmt.Sprintf("u%d@example.com", i)}
		require.NoError(t, db.Users().Create(context.Background(), u))
		sessions[i] = &model.Session{ID: fmt.Sprintf("s%d", i), UserID: u.ID, Username: u.Username}
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		for range perUser {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := engine.SubmitMessage(context.Background(), s, "Build an app")
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	for _, s := range sessions {
		turns, err := engine.Transcript(context.Background(), s)
		require.NoError(t, err)
		require.Len(t, turns, 2*perUser)
		for i := 0; i < len(turns); i += 2 {
			assert.Equal(t, model.RoleUser, turns[i].Role)
			assert.Equal(t, model.RoleAssistant, turns[i+1].Role)
		}
	}
}
