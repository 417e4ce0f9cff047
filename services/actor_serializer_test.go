package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-service/models"
	"github.com/yeremiapane/table-service/storage"
)

// slowStore delays every Save.
type slowStore struct {
	storage.TableStore
	delay time.Duration
}

func (s *slowStore) Save(ctx context.Context, t *models.Table) error {
	time.Sleep(s.delay)
	return s.TableStore.Save(ctx, t)
}

func TestActorSerializerWaitsForStartedJob(t *testing.T) {
	_, mem := newTestManager(t)
	actors := NewActorSerializer(nil)
	actors.Timeout = 50 * time.Millisecond
	defer actors.Stop()

	m := NewTableManager(&slowStore{TableStore: mem, delay: 150 * time.Millisecond}, WithSerializer(actors))

	table, err := m.Occupy(context.Background(), 3, linh())
	require.NoError(t, err, "a write that committed is reported as committed")
	assert.Equal(t, models.TableOccupied, table.Status)

	_, err = m.ResetAll(context.Background())
	require.NoError(t, err)
	stored, err := mem.GetByNumber(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, models.TableAvailable, stored.Status, "reset runs after the occupy, never alongside it")
}

func TestActorSerializerSkipsQueuedJobOnTimeout(t *testing.T) {
	_, mem := newTestManager(t)
	actors := NewActorSerializer(nil)
	defer actors.Stop()

	m := NewTableManager(&slowStore{TableStore: mem, delay: 150 * time.Millisecond}, WithSerializer(actors))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := m.Occupy(context.Background(), 1, linh())
		assert.NoError(t, err)
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := m.AttachOrder(ctx, 1, latte())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	wg.Wait()

	// give a wrongly resumed job time to show up
	time.Sleep(200 * time.Millisecond)
	stored, err := mem.GetByNumber(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.TableOccupied, stored.Status)
	assert.Nil(t, stored.CurrentOrder, "a job cancelled in the queue never runs")
}
