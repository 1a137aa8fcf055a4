//Package persist stores the bot's JSON documents on local disk and mirrors them, best effort, to any
//number of remote sinks.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"sync"

	"github.com/callummance/reactbot/metrics"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
)

//DocumentSink is a remote copy of the documents. Failures are logged and never block local writes.
type DocumentSink interface {
	Name() string
	Put(ctx context.Context, name string, data []byte) error
}

//Saver accepts document snapshots. Stores depend on this rather than on *Adapter.
type Saver interface {
	Save(name string, doc interface{})
}

//Adapter serializes documents and hands them to a single writer goroutine, which writes the local file
//and then every sink in turn. Saves of the same document that have not been written yet collapse into
//the most recent one.
type Adapter struct {
	files *FileStore
	sinks []DocumentSink

	mu      sync.Mutex
	pending map[string][]byte
	order   []string
	closed  bool

	//serializes writes made after the writer goroutine has stopped
	lateMu sync.Mutex

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

//NewAdapter starts the writer goroutine. Call Close to flush outstanding saves.
func NewAdapter(files *FileStore, sinks ...DocumentSink) *Adapter {
	a := &Adapter{
		files:   files,
		sinks:   sinks,
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

//Load decodes the named document into v. A document which has never been written leaves v untouched.
func (a *Adapter) Load(name string, v interface{}) error {
	data, err := a.files.Read(name)
	if errors.Is(err, fs.ErrNotExist) {
		logrus.Infof("No existing %v found; starting fresh.", name)
		return nil
	}
	if err != nil {
		return oops.Code("PERSIST_READ_FAILED").With("document", name).Wrap(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return oops.Code("PERSIST_DECODE_FAILED").With("document", name).Wrap(err)
	}
	logrus.Infof("Loaded %v from %v", name, a.files.Path(name))
	return nil
}

//Save snapshots doc immediately and queues it for writing. It never blocks on I/O.
func (a *Adapter) Save(name string, doc interface{}) {
	data, err := Encode(doc)
	if err != nil {
		logrus.Errorf("Failed to encode %v for saving due to error %v", name, err)
		metrics.RecordPersistenceFailure(name, "encode")
		return
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		logrus.Warnf("Save of %v requested after shutdown; writing synchronously", name)
		//Older snapshots may still be draining
		a.wg.Wait()
		a.lateMu.Lock()
		defer a.lateMu.Unlock()
		a.write(name, data)
		return
	}
	if _, queued := a.pending[name]; !queued {
		a.order = append(a.order, name)
	}
	a.pending[name] = data
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

//Close writes anything still queued and stops the writer goroutine
func (a *Adapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()
	close(a.done)
	a.wg.Wait()
}

//Encode renders a document the way it is stored: two-space indented JSON with a trailing newline
func Encode(doc interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (a *Adapter) run() {
	defer a.wg.Done()
	for {
		select {
		case <-a.wake:
			a.flush()
		case <-a.done:
			a.flush()
			return
		}
	}
}

func (a *Adapter) flush() {
	for {
		a.mu.Lock()
		if len(a.order) == 0 {
			a.mu.Unlock()
			return
		}
		name := a.order[0]
		a.order = a.order[1:]
		data := a.pending[name]
		delete(a.pending, name)
		a.mu.Unlock()

		a.write(name, data)
	}
}

func (a *Adapter) write(name string, data []byte) {
	if err := a.files.Write(name, data); err != nil {
		logrus.Errorf("Failed to write %v to disk due to error %v", name, err)
		metrics.RecordPersistenceFailure(name, "file")
	} else {
		logrus.Debugf("Saved %v to disk", name)
	}

	for _, sink := range a.sinks {
		if err := sink.Put(context.Background(), name, data); err != nil {
			logrus.Warnf("Failed to mirror %v to %v due to error %v", name, sink.Name(), err)
			metrics.RecordPersistenceFailure(name, sink.Name())
			continue
		}
		logrus.Debugf("Mirrored %v to %v", name, sink.Name())
	}
}
