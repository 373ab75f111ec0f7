package receipt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"finapi/models"
	"finapi/pkg/logx"
)

// settle is how long a file must go without events before it is picked up.
const settle = 300 * time.Millisecond

var ErrNoOwner = errors.New("file name does not start with a user id")

type Ingester interface {
	Ingest(ctx context.Context, userID uint, path string) (*models.Receipt, error)
}

// OwnerFromName reads the user id from names like "42_lunch.jpg".
func OwnerFromName(name string) (uint, error) {
	prefix, _, found := strings.Cut(filepath.Base(name), "_")
	if !found {
		return 0, ErrNoOwner
	}
	id, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrNoOwner
	}
	return uint(id), nil
}

// Inbox turns image files dropped into Dir into receipts. Each ingested
// file is moved to Processed so it is handled once.
type Inbox struct {
	Dir       string
	Processed string
	Workers   int
	ingest    Ingester
	log       *logx.Logger
}

func NewInbox(dir string, ing Ingester, log *logx.Logger) *Inbox {
	if log == nil {
		log = logx.Nop()
	}
	return &Inbox{
		Dir:       dir,
		Processed: filepath.Join(dir, "processed"),
		Workers:   2,
		ingest:    ing,
		log:       log.WithComponent(logx.ComponentWatcher),
	}
}

// Pending lists the supported files currently in the inbox, sorted.
func (b *Inbox) Pending() ([]string, error) {
	entries, err := os.ReadDir(b.Dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && AllowedExt(e.Name()) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Drain processes every pending file and returns how many were ingested.
func (b *Inbox) Drain(ctx context.Context) (int, error) {
	names, err := b.Pending()
	if err != nil {
		return 0, err
	}
	ch := make(chan string, len(names))
	for _, n := range names {
		ch <- n
	}
	close(ch)
	return b.run(ctx, ch)
}

func (b *Inbox) run(ctx context.Context, names <-chan string) (int, error) {
	workers := b.Workers
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	var count atomic.Int64
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for name := range names {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if b.process(ctx, name) {
					count.Add(1)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	return int(count.Load()), err
}

// process ingests one file. Failures are logged and leave the file in the
// inbox.
func (b *Inbox) process(ctx context.Context, name string) bool {
	path := filepath.Join(b.Dir, name)
	owner, err := OwnerFromName(name)
	if err != nil {
		b.log.WarnContext(ctx, "skipping file", "file", name, logx.FieldError, err)
		return false
	}
	rc, err := b.ingest.Ingest(ctx, owner, path)
	if err != nil {
		b.log.Err(ctx, "ingest", err, "file", name, logx.FieldUserID, owner)
		return false
	}
	if err := b.moveProcessed(path, name); err != nil {
		b.log.Err(ctx, "move processed", err, "file", name)
	}
	b.log.InfoContext(ctx, "receipt ingested", "file", name, "receipt_id", rc.ID, logx.FieldUserID, owner, "failed", rc.Failed)
	return true
}

func (b *Inbox) moveProcessed(src, name string) error {
	if err := os.MkdirAll(b.Processed, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(b.Processed, name)
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	return copyRemove(src, dst)
}

func copyRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// Watch drains the inbox, then processes files as they appear until ctx is
// cancelled. A file is picked up once it has been quiet for settle.
func (b *Inbox) Watch(ctx context.Context) error {
	if _, err := b.Drain(ctx); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(b.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", b.Dir, err)
	}
	b.log.InfoContext(ctx, "watching inbox", "dir", b.Dir)

	names := make(chan string, 256)
	runErr := make(chan error, 1)
	go func() {
		_, err := b.run(ctx, names)
		runErr <- err
	}()

	pending := map[string]time.Time{}
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			close(names)
			<-runErr
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				close(names)
				return <-runErr
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				name := filepath.Base(ev.Name)
				if filepath.Dir(ev.Name) == filepath.Clean(b.Dir) && AllowedExt(name) {
					pending[name] = time.Now()
				}
			}
		case now := <-ticker.C:
			for name, t := range pending {
				if now.Sub(t) >= settle {
					delete(pending, name)
					names <- name
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				close(names)
				return <-runErr
			}
			b.log.Err(ctx, "watch", err)
		}
	}
}
