package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/meridian-cloud/docgate/internal/db"
)

// Txn runs fn inside WATCH/MULTI/EXEC on a dedicated connection. Commands
// queued by fn are applied atomically; if any watched key changes before
// commit, the transaction aborts with db.ErrTxAborted.
func (s *Store) Txn(ctx context.Context, watch []string, fn func(tx db.Tx) error) error {
	return s.client.Dedicated(func(c rueidis.DedicatedClient) error {
		if len(watch) > 0 {
			if err := c.Do(ctx, c.B().Watch().Key(watch...).Build()).Error(); err != nil {
				return &db.Error{Op: db.OpExec, Err: err}
			}
		}

		buf := &txBuffer{c: c}
		if err := fn(buf); err != nil {
			c.Do(ctx, c.B().Unwatch().Build())
			return err
		}
		if len(buf.cmds) == 0 {
			c.Do(ctx, c.B().Unwatch().Build())
			return nil
		}

		cmds := make(rueidis.Commands, 0, len(buf.cmds)+2)
		cmds = append(cmds, c.B().Multi().Build())
		cmds = append(cmds, buf.cmds...)
		cmds = append(cmds, c.B().Exec().Build())

		resps := c.DoMulti(ctx, cmds...)
		exec := resps[len(resps)-1]
		if err := exec.Error(); err != nil {
			// EXEC replies nil when a watched key changed.
			if rueidis.IsRedisNil(err) {
				return db.ErrTxAborted
			}
			return &db.Error{Op: db.OpExec, Err: err}
		}
		return nil
	})
}

// txBuffer queues commands between MULTI and EXEC.
type txBuffer struct {
	c    rueidis.DedicatedClient
	cmds rueidis.Commands
}

func (t *txBuffer) JSONSet(key, path string, data []byte) {
	t.cmds = append(t.cmds, t.c.B().Arbitrary("JSON.SET").Keys(key).Args(path, string(data)).Build())
}

func (t *txBuffer) Del(key string) {
	t.cmds = append(t.cmds, t.c.B().Del().Key(key).Build())
}
