package db

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	rethink "gopkg.in/gorethink/gorethink.v3"
)

const documentsTable string = "documents"

//StoredDocument is a single mirrored document. Content holds the JSON exactly as it was written to disk.
type StoredDocument struct {
	ID        string    `gorethink:"id" json:"id"`
	Content   string    `gorethink:"content" json:"content"`
	Revision  int       `gorethink:"revision" json:"revision"`
	UpdatedAt time.Time `gorethink:"updated_at" json:"updated_at"`
}

//nextRevision builds the record which replaces prev, which may be nil if the document is new
func nextRevision(prev *StoredDocument, name string, data []byte, now time.Time) StoredDocument {
	revision := 1
	if prev != nil {
		revision = prev.Revision + 1
	}
	return StoredDocument{
		ID:        name,
		Content:   string(data),
		Revision:  revision,
		UpdatedAt: now.UTC(),
	}
}

//Name identifies this sink in logs and metrics
func (db *Connection) Name() string {
	return "rethinkdb"
}

//Put replaces the stored copy of a document, bumping its revision
func (db *Connection) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prev, err := db.GetDocument(name)
	if err != nil {
		return err
	}
	doc := nextRevision(prev, name, data, time.Now())
	resp, err := rethink.Table(documentsTable).Insert(doc, rethink.InsertOpts{
		Conflict: "replace",
	}).RunWrite(db.session)
	if err != nil {
		return fmt.Errorf("failed to write document %v because: %w", name, err)
	} else if resp.Errors > 0 {
		return fmt.Errorf("failed to write document %v because: %v", name, resp.FirstError)
	}
	logrus.Debugf("Stored revision %d of %v in rethinkdb", doc.Revision, name)
	return nil
}

//GetDocument fetches the stored copy of a document, returning nil if there is none
func (db *Connection) GetDocument(name string) (*StoredDocument, error) {
	res, err := rethink.Table(documentsTable).Get(name).Run(db.session)
	if err != nil {
		return nil, fmt.Errorf("failed to query database for document %v because: %w", name, err)
	}
	defer res.Close()

	if res.IsNil() {
		return nil, nil
	}
	var doc StoredDocument
	if err := res.One(&doc); err != nil {
		return nil, fmt.Errorf("failed to read document %v from database because: %w", name, err)
	}
	return &doc, nil
}
