package offer

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"go.uber.org/zap"
)

const intentKeyPrefix = "offer_intent_"

// IntentKind is the operation an intent journals
type IntentKind string

const (
	IntentCreate   IntentKind = "create"
	IntentTransfer IntentKind = "transfer"
	IntentAccept   IntentKind = "accept"
	IntentCancel   IntentKind = "cancel"
)

// IntentStatus is the journal state of an intent
type IntentStatus string

const (
	IntentPending IntentStatus = "pending"
	IntentDone    IntentStatus = "done"
	IntentFailed  IntentStatus = "failed"
)

// Intent records a ledger submission and the local change that must follow
// it. It is written before anything is submitted, so a crash between the
// ledger phase and the local phase can be resolved at startup.
type Intent struct {
	ID                 string       `json:"id"`
	Kind               IntentKind   `json:"kind"`
	Key                string       `json:"key"`
	Status             IntentStatus `json:"status"`
	AccountID          int64        `json:"account_id"`
	Account            string       `json:"account"`
	NFTokenID          string       `json:"nftoken_id,omitempty"`
	OfferIndex         string       `json:"offer_index,omitempty"`
	Amount             string       `json:"amount,omitempty"`
	Destination        string       `json:"destination,omitempty"`
	TxHash             string       `json:"tx_hash,omitempty"`
	LastLedgerSequence uint32       `json:"last_ledger_sequence,omitempty"`
	Error              string       `json:"error,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Submitted reports whether a signed transaction was recorded
func (i *Intent) Submitted() bool {
	return i.TxHash != ""
}

// JournalConfig holds the write-ahead log settings
type JournalConfig struct {
	Dir              string `mapstructure:"dir"`
	SegmentThreshold int    `mapstructure:"segment_threshold"`
	MaxSegments      int    `mapstructure:"max_segments"`
	Sync             bool   `mapstructure:"sync"`
}

// DefaultJournalConfig returns the default journal settings
func DefaultJournalConfig() JournalConfig {
	return JournalConfig{
		Dir:              "./data/journal",
		SegmentThreshold: 1000,
		MaxSegments:      100,
		Sync:             true,
	}
}

// Journal is the write-ahead log of offer submissions. Keys serialise
// operations: while an intent is pending no other intent with the same key
// can begin.
type Journal struct {
	mu       sync.Mutex
	wal      *gowal.Wal
	intents  map[string]*Intent
	inflight map[string]string
	logger   *zap.Logger
}

// OpenJournal opens the log in cfg.Dir and replays it. The latest record of
// each intent wins; only intents still pending are kept in memory.
func OpenJournal(cfg JournalConfig, logger *zap.Logger) (*Journal, error) {
	if cfg.Dir == "" {
		return nil, errors.New("journal dir is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create journal dir %s", cfg.Dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              cfg.Dir,
		Prefix:           "intents_",
		SegmentThreshold: cfg.SegmentThreshold,
		MaxSegments:      cfg.MaxSegments,
		IsInSyncDiskMode: cfg.Sync,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}

	j := &Journal{
		wal:      wal,
		intents:  make(map[string]*Intent),
		inflight: make(map[string]string),
		logger:   logger,
	}

	for msg := range wal.Iterator() {
		if !strings.HasPrefix(msg.Key, intentKeyPrefix) {
			continue
		}
		var intent Intent
		if err := json.Unmarshal(msg.Value, &intent); err != nil {
			logger.Error("skipping unreadable intent", zap.String("key", msg.Key), zap.Error(err))
			continue
		}
		if intent.Status == IntentPending {
			j.intents[intent.ID] = &intent
		} else {
			delete(j.intents, intent.ID)
		}
	}

	for id, intent := range j.intents {
		j.inflight[intent.Key] = id
	}

	logger.Info("journal opened", zap.String("dir", cfg.Dir), zap.Int("pending", len(j.inflight)))
	return j, nil
}

// Begin journals a new pending intent. It fails with ErrOperationInFlight if
// another intent with the same key is pending.
func (j *Journal) Begin(intent *Intent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if id, busy := j.inflight[intent.Key]; busy {
		return errors.Wrapf(ErrOperationInFlight, "%s (intent %s)", intent.Key, id)
	}

	now := time.Now().UTC()
	intent.ID = uuid.New().String()
	intent.Status = IntentPending
	intent.CreatedAt = now
	intent.UpdatedAt = now

	if err := j.persist(intent); err != nil {
		return err
	}
	j.inflight[intent.Key] = intent.ID
	return nil
}

// Update persists changes to a pending intent, such as its transaction hash
func (j *Journal) Update(intent *Intent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	intent.UpdatedAt = time.Now().UTC()
	return j.persist(intent)
}

// MarkDone closes an intent whose local phase completed
func (j *Journal) MarkDone(intent *Intent) error {
	return j.finish(intent, IntentDone, nil)
}

// MarkFailed closes an intent that can no longer succeed
func (j *Journal) MarkFailed(intent *Intent, cause error) error {
	return j.finish(intent, IntentFailed, cause)
}

func (j *Journal) finish(intent *Intent, status IntentStatus, cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	intent.Status = status
	intent.Error = ""
	if cause != nil {
		intent.Error = cause.Error()
	}
	intent.UpdatedAt = time.Now().UTC()

	err := j.persist(intent)
	if j.inflight[intent.Key] == intent.ID {
		delete(j.inflight, intent.Key)
	}
	return err
}

// Pending returns copies of the pending intents, oldest first
func (j *Journal) Pending() []*Intent {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []*Intent
	for _, intent := range j.intents {
		if intent.Status == IntentPending {
			cp := *intent
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}

// InFlight reports whether an intent with key is pending
func (j *Journal) InFlight(key string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.inflight[key]
	return ok
}

// Get returns a copy of the pending intent with the given id. Finished
// intents live only in the log.
func (j *Journal) Get(id string) (*Intent, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	intent, ok := j.intents[id]
	if !ok {
		return nil, false
	}
	cp := *intent
	return &cp, true
}

// Close closes the underlying log
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Close()
}

// persist must be called with mu held
func (j *Journal) persist(intent *Intent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return errors.Wrap(err, "marshal intent")
	}
	if err := j.wal.Write(j.wal.CurrentIndex()+1, intentKeyPrefix+intent.ID, data); err != nil {
		return errors.Wrapf(err, "journal intent %s", intent.ID)
	}
	if intent.Status != IntentPending {
		delete(j.intents, intent.ID)
		return nil
	}
	cp := *intent
	j.intents[intent.ID] = &cp
	return nil
}
