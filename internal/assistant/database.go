package assistant

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	cardBucketName         = "cards"
	documentBucketName     = "documents"
	conversationBucketName = "conversations"
)

// ErrNotFound is returned when a card or document does not exist
var ErrNotFound = errors.New("not found")

// DB defines the interface for database operations
type DB interface {
	// SaveCard inserts or replaces a card
	SaveCard(card *Card) error

	// GetCard retrieves a card by ID
	GetCard(id string) (*Card, error)

	// ListCards returns all cards
	ListCards() ([]*Card, error)

	// DeleteCard removes a card
	DeleteCard(id string) error

	// SaveDocument inserts or replaces a document
	SaveDocument(doc *Document) error

	// GetDocument retrieves a document by ID
	GetDocument(id string) (*Document, error)

	// ListDocuments returns all documents
	ListDocuments() ([]*Document, error)

	// DeleteDocument removes a document
	DeleteDocument(id string) error

	// AppendConversation adds an entry to the end of the log
	AppendConversation(entry *ConversationEntry) error

	// ListConversations returns the log, oldest first
	ListConversations() ([]*ConversationEntry, error)

	// ClearConversations empties the log
	ClearConversations() error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{cardBucketName, documentBucketName, conversationBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func (b *BoltDB) SaveCard(card *Card) error {
	return b.put(cardBucketName, card.ID, card)
}

func (b *BoltDB) GetCard(id string) (*Card, error) {
	var card *Card
	if err := b.get(cardBucketName, id, &card); err != nil {
		return nil, fmt.Errorf("card %s: %w", id, err)
	}
	return card, nil
}

func (b *BoltDB) ListCards() ([]*Card, error) {
	cards := make([]*Card, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(cardBucketName)).ForEach(func(k, v []byte) error {
			var card Card
			if err := json.Unmarshal(v, &card); err != nil {
				return fmt.Errorf("unmarshaling card: %w", err)
			}
			cards = append(cards, &card)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return cards, nil
}

func (b *BoltDB) DeleteCard(id string) error {
	return b.delete(cardBucketName, id)
}

func (b *BoltDB) SaveDocument(doc *Document) error {
	return b.put(documentBucketName, doc.ID, doc)
}

func (b *BoltDB) GetDocument(id string) (*Document, error) {
	var doc *Document
	if err := b.get(documentBucketName, id, &doc); err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	return doc, nil
}

func (b *BoltDB) ListDocuments() ([]*Document, error) {
	docs := make([]*Document, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(documentBucketName)).ForEach(func(k, v []byte) error {
			var doc Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("unmarshaling document: %w", err)
			}
			docs = append(docs, &doc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (b *BoltDB) DeleteDocument(id string) error {
	return b.delete(documentBucketName, id)
}

// AppendConversation keys entries by the bucket sequence so iteration order
// is insertion order
func (b *BoltDB) AppendConversation(entry *ConversationEntry) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(conversationBucketName))
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating sequence: %w", err)
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling conversation: %w", err)
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bucket.Put(key, data)
	})
}

func (b *BoltDB) ListConversations() ([]*ConversationEntry, error) {
	entries := make([]*ConversationEntry, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(conversationBucketName)).ForEach(func(k, v []byte) error {
			var entry ConversationEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshaling conversation: %w", err)
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *BoltDB) ClearConversations() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(conversationBucketName)); err != nil {
			return fmt.Errorf("deleting conversations: %w", err)
		}
		_, err := tx.CreateBucket([]byte(conversationBucketName))
		return err
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func (b *BoltDB) put(bucketName, id string, v any) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", bucketName, err)
		}
		return tx.Bucket([]byte(bucketName)).Put([]byte(id), data)
	})
}

func (b *BoltDB) get(bucketName, id string, v any) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, v)
	})
}

// delete reports ErrNotFound for a missing key; bbolt itself does not
func (b *BoltDB) delete(bucketName, id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("%s %s: %w", bucketName, id, ErrNotFound)
		}
		return bucket.Delete([]byte(id))
	})
}
