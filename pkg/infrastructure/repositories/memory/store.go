package memory

import (
	"context"
	"sync"

	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/entities"
	"github.com/Etezazi-Industries/RFQ-Gen/pkg/domain/repositories"
)

// Gateway operation names used in the call journal and for failure injection.
const (
	OpGetOrCreateItem        = "GetOrCreateItem"
	OpFindMaterialItem       = "FindMaterialItem"
	OpUpdateItemDetails      = "UpdateItemDetails"
	OpGetOrCreateHardware    = "GetOrCreateHardware"
	OpCreateQuote            = "CreateQuote"
	OpCopyTemplateOperations = "CopyTemplateOperations"
	OpFindOperation          = "FindOperation"
	OpCreateAssemblyLink     = "CreateAssemblyLink"
	OpCreateFormulaVariables = "CreateFormulaVariables"
	OpCreateBOMLine          = "CreateBOMLine"
	OpCreateRouter           = "CreateRouter"
	OpAttachRouterStep       = "AttachRouterStep"
	OpCreateRFQ              = "CreateRFQ"
	OpCreateRFQLineItem      = "CreateRFQLineItem"
	OpResetRFQ               = "ResetRFQ"
	OpUploadDocument         = "UploadDocument"
	OpGetPartyAddress        = "GetPartyAddress"
)

// Call is one journaled gateway invocation
type Call struct {
	Op     string
	Args   interface{}
	Handle entities.Handle
}

type failure struct {
	err       error
	remaining int // negative fails forever
}

// Store is an in-memory ERP database. Every gateway call is journaled, including
// calls made inside transactions that were later rolled back.
type Store struct {
	mu       sync.Mutex
	db       *database
	calls    []Call
	failures map[string]*failure
}

// NewStore creates an empty store whose quote template holds the given
// operation sequence numbers
func NewStore(templateSequences ...int) *Store {
	return &Store{
		db:       newDatabase(templateSequences),
		failures: make(map[string]*failure),
	}
}

// Verify interface compliance
var _ repositories.Transactor = (*Store)(nil)
var _ repositories.Gateway = (*session)(nil)

// Gateway returns a gateway that writes straight to the committed state
func (s *Store) Gateway() repositories.Gateway {
	return &session{store: s, db: s.db}
}

// WithinTx runs fn against a private copy of the state and keeps the copy only
// when fn succeeds
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, gw repositories.Gateway) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.db.clone()
	if err := fn(ctx, &session{store: s, db: tx}); err != nil {
		return err
	}
	s.db = tx
	return nil
}

// FailOn makes every subsequent call to op return err
func (s *Store) FailOn(op string, err error) {
	s.failures[op] = &failure{err: err, remaining: -1}
}

// FailTimes makes the next n calls to op return err
func (s *Store) FailTimes(op string, n int, err error) {
	s.failures[op] = &failure{err: err, remaining: n}
}

// Calls returns the journal in call order
func (s *Store) Calls() []Call {
	calls := make([]Call, len(s.calls))
	copy(calls, s.calls)
	return calls
}

// CallsOf returns the journaled calls of one operation
func (s *Store) CallsOf(op string) []Call {
	var calls []Call
	for _, c := range s.calls {
		if c.Op == op {
			calls = append(calls, c)
		}
	}
	return calls
}

// ResetCalls clears the journal
func (s *Store) ResetCalls() {
	s.calls = nil
}

// AddParty seeds a customer address
func (s *Store) AddParty(party entities.Handle, address entities.Address) {
	s.db.parties[party] = address
}

// AddItem seeds an existing ERP item and returns its handle
func (s *Store) AddItem(spec entities.ItemSpec) entities.Handle {
	return s.db.insertItem(spec)
}

// session applies gateway calls to one database state
type session struct {
	store *Store
	db    *database
}

func (s *session) record(op string, args interface{}, h entities.Handle) {
	s.store.calls = append(s.store.calls, Call{Op: op, Args: args, Handle: h})
}

func (s *session) fail(op string) error {
	f, ok := s.store.failures[op]
	if !ok {
		return nil
	}
	if f.remaining == 0 {
		delete(s.store.failures, op)
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.err
}
