// Package smartparse turns free-form input into preview transactions.
//
// The parsing itself belongs to the remote oracle. This package only checks
// what comes back and, when it is usable, stages it as a preview so the user
// can confirm it before it becomes a real transaction.
package smartparse

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/moneytime-app/moneytime/internal/domain"
)

// Input kinds accepted by Parse.
const (
	KindCommand = "command"
	KindImage   = "image"
	KindAudio   = "audio"
)

// Stager receives a validated parse as a new preview.
type Stager interface {
	Add(payload domain.TransactionCreate) domain.PreviewTransaction
}

// Result is a staged preview together with the oracle's confidence.
type Result struct {
	Preview    domain.PreviewTransaction `json:"preview"`
	Confidence float64                   `json:"confidence"`
}

// Service validates oracle output and stages it.
type Service struct {
	parser domain.SmartParser
	stager Stager
}

// New creates a smart entry service.
func New(parser domain.SmartParser, stager Stager) *Service {
	return &Service{parser: parser, stager: stager}
}

// Command parses a typed command such as "almoço 35 ontem".
func (s *Service) Command(ctx context.Context, command string) (*Result, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, fmt.Errorf("%w: empty command", domain.ErrParseFailed)
	}
	res, err := s.parser.ParseCommand(ctx, command)
	return s.stage(KindCommand, res, err)
}

// Image parses a receipt photo.
func (s *Service) Image(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	res, err := s.parser.ParseImage(ctx, filename, r)
	return s.stage(KindImage, res, err)
}

// Audio parses a voice note.
func (s *Service) Audio(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	res, err := s.parser.ParseAudio(ctx, filename, r)
	return s.stage(KindAudio, res, err)
}

func (s *Service) stage(kind string, res *domain.SmartParseResult, err error) (*Result, error) {
	if err != nil {
		log.Printf("[smartparse] %s oracle call failed: %v", kind, err)
		return nil, err
	}
	if err := res.Validate(); err != nil {
		log.Printf("[smartparse] %s result rejected: %v", kind, err)
		return nil, err
	}
	p := s.stager.Add(res.Create())
	log.Printf("[smartparse] staged %s from %s (confidence %.2f)", p.ID, kind, res.Confidence)
	return &Result{Preview: p, Confidence: res.Confidence}, nil
}
