// Package parser turns raw per-chain logs into canonical decoded records.
// One parser instance exists per domain; a registry lets any parser resolve
// destination addresses for domains of a different chain family.
package parser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainsafe/sygma-indexer/pkg/events"
)

var (
	// ErrResourceNotFound is returned when an event references a resource id
	// that is not in the known resource set.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrDomainNotFound is returned when an event references a domain id that
	// is not in the shared configuration.
	ErrDomainNotFound = errors.New("domain not found")
	// ErrUnsupportedResourceType is returned for resource types with no
	// decodable scalar amount.
	ErrUnsupportedResourceType = errors.New("unsupported resource type")
	// ErrParserNotFound is returned when no parser is registered for a domain.
	ErrParserNotFound = errors.New("no parser registered for domain")
)

// Canonical topics the sources tag their logs with. Each chain family maps
// its native event identifiers onto these before handing logs to a parser.
const (
	TopicDeposit                = "deposit"
	TopicProposalExecution      = "proposalExecution"
	TopicFailedHandlerExecution = "failedHandlerExecution"
	TopicFeeCollected           = "feeCollected"
)

// Log is one raw chain-native log or event, tagged with the topic or event
// name the pipeline subscribed to. Raw carries the chain-native record: a
// go-ethereum types.Log on EVM domains, a decoded pallet event on Substrate
// domains.
type Log struct {
	Topic       string
	BlockNumber uint64
	Timestamp   time.Time
	TxHash      string
	Raw         any
}

// Parser decodes one domain's raw logs into canonical records.
type Parser interface {
	// Bind wires the parser to the registry holding all domain parsers.
	// Called once after every parser is constructed, so that cross-family
	// destination resolution never observes a partially built registry.
	Bind(registry *Registry)

	ParseDeposit(ctx context.Context, l Log) (*events.Deposit, error)
	ParseProposalExecution(l Log) (*events.Execution, error)
	ParseFailedHandlerExecution(l Log) (*events.FailedExecution, error)

	// ParseDestination decodes raw recipient bytes extracted from a deposit
	// payload into the chain-native address string of this parser's domain.
	ParseDestination(recipient []byte) (string, error)
}

// FeeEventParser is implemented by parsers for domains that emit fee
// collection as a standalone event instead of computing it at deposit time.
type FeeEventParser interface {
	ParseFeeCollected(l Log) (*events.Fee, error)
}

// Registry maps domain ids to their concrete parser instances.
type Registry struct {
	parsers map[uint8]Parser
}

// NewRegistry creates an empty parser registry
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[uint8]Parser)}
}

// Register adds the parser for a domain. Registration happens for all domains
// before Bind is called on any of them.
func (r *Registry) Register(domainID uint8, p Parser) {
	r.parsers[domainID] = p
}

// Bind completes two-phase initialization, handing every registered parser a
// reference to the full registry.
func (r *Registry) Bind() {
	for _, p := range r.parsers {
		p.Bind(r)
	}
}

// Parser returns the parser registered for a domain.
func (r *Registry) Parser(domainID uint8) (Parser, error) {
	p, ok := r.parsers[domainID]
	if !ok {
		return nil, fmt.Errorf("domain %d: %w", domainID, ErrParserNotFound)
	}
	return p, nil
}
