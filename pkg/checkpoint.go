package pkg

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"loom/pkg/model"
)

// ErrNoCheckpoint is returned when training terminates before any
// checkpoint could be taken, so no trained state exists to restore.
var ErrNoCheckpoint = errors.New("no checkpoint available")

// checkpointer persists the best-epoch snapshot of the network in a
// temporary directory scoped to one fit. Superseded checkpoints are
// overwritten; only the best is retained.
type checkpointer struct {
	dir       string
	taken     bool
	bestEpoch int
}

func newCheckpointer(name string) (*checkpointer, error) {
	// The uuid keeps concurrently fitted models with the same name from
	// colliding on checkpoint files.
	dir, err := os.MkdirTemp("", fmt.Sprintf("loom-%s-%s-", name, uuid.New().String()))
	if err != nil {
		return nil, fmt.Errorf("error creating checkpoint directory: %w", err)
	}
	return &checkpointer{dir: dir, bestEpoch: -1}, nil
}

func (c *checkpointer) path() string {
	return filepath.Join(c.dir, "checkpoint.gob")
}

func (c *checkpointer) save(epoch int, net *model.FeedForward) error {
	file, err := os.Create(c.path())
	if err != nil {
		return fmt.Errorf("error creating checkpoint: %w", err)
	}
	defer file.Close()
	if err := gob.NewEncoder(file).Encode(net); err != nil {
		return fmt.Errorf("error encoding checkpoint: %w", err)
	}
	c.taken = true
	c.bestEpoch = epoch
	return nil
}

// restore rebuilds the network from the best checkpoint and returns it with
// the epoch it was taken at.
func (c *checkpointer) restore(config model.FeedForwardConfig) (*model.FeedForward, int, error) {
	if !c.taken {
		return nil, 0, ErrNoCheckpoint
	}
	file, err := os.Open(c.path())
	if err != nil {
		return nil, 0, fmt.Errorf("error opening checkpoint: %w", err)
	}
	defer file.Close()
	net := model.NewFeedForward(config)
	if err := gob.NewDecoder(file).Decode(net); err != nil {
		return nil, 0, fmt.Errorf("error decoding checkpoint: %w", err)
	}
	return net, c.bestEpoch, nil
}

// Close removes the checkpoint directory. Deferred by the fit session so
// cleanup runs on every exit path.
func (c *checkpointer) Close() error {
	return os.RemoveAll(c.dir)
}
