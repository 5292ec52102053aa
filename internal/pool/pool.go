// Package pool runs private prediction pools: a creator opens a pool, friends
// join it with the shareable code, and each member keeps a bracket.
//
// There are no accounts. Creation and joining return random tokens exactly
// once; only their SHA-256 digests are stored, and later updates or deletes
// must present the matching token.
package pool

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rickgao/kalshi-rankings/internal/auth"
	"github.com/rickgao/kalshi-rankings/internal/model"
	"github.com/rickgao/kalshi-rankings/internal/store"
)

// Field limits, in characters.
const (
	MaxPoolName    = 50
	MaxDisplayName = 30
	MaxBracketData = 500
)

// Member listing limits.
const (
	DefaultMemberLimit = 50
	MaxMemberLimit     = 100
)

// CodePrefix starts every pool code.
const CodePrefix = "wc26-"

const codeAttempts = 5

var (
	// ErrNotFound is returned for an unknown pool code or display name.
	ErrNotFound = errors.New("not found")
	// ErrNameTaken is returned when a display name is already used in the pool.
	ErrNameTaken = errors.New("display name already taken")
	// ErrTokenRequired is returned when an operation is attempted without a token.
	ErrTokenRequired = errors.New("token required")
	// ErrInvalidToken is returned when a token does not match the stored digest.
	ErrInvalidToken = errors.New("invalid token")
)

// ValidationError reports a request field outside its limits.
type ValidationError struct {
	Field string
	Max   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must be between 1 and %d characters", e.Field, e.Max)
}

// Store is the persistence used by Service. store.Store implements it.
type Store interface {
	store.PoolStore
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source for created, joined and updated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRandom replaces the entropy source for codes and tokens.
func WithRandom(r io.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.rand = r
		}
	}
}

// Service implements the pool operations.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	rand   io.Reader
}

// New creates a Service.
func New(st Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: slog.Default(),
		now:    time.Now,
		rand:   rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Created is returned once when a pool is created.
type Created struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	CreatorToken string `json:"creator_token"`
	MemberToken  string `json:"member_token"`
}

// Joined is returned once when a member joins.
type Joined struct {
	MemberToken string `json:"member_token"`
	PoolName    string `json:"team_name"`
	PoolCode    string `json:"team_code"`
}

// MemberView is the public part of a member.
type MemberView struct {
	DisplayName string    `json:"display_name"`
	BracketData string    `json:"bracket_data"`
	JoinedAt    time.Time `json:"joined_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// View is a pool with its members, as anyone holding the code sees it.
type View struct {
	Code      string       `json:"code"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
	Members   []MemberView `json:"members"`
}

// Create opens a pool named name with creatorName as its first member.
func (s *Service) Create(ctx context.Context, name, creatorName, bracket string) (Created, error) {
	if err := checkLen("name", name, MaxPoolName); err != nil {
		return Created{}, err
	}
	if err := checkLen("creator_name", creatorName, MaxDisplayName); err != nil {
		return Created{}, err
	}
	if err := checkLen("bracket_data", bracket, MaxBracketData); err != nil {
		return Created{}, err
	}

	creatorToken, err := s.token()
	if err != nil {
		return Created{}, err
	}
	memberToken, err := s.token()
	if err != nil {
		return Created{}, err
	}

	now := s.now().UTC()
	creator := model.PoolMember{
		DisplayName:     strings.TrimSpace(creatorName),
		BracketData:     bracket,
		MemberTokenHash: auth.HashToken(memberToken).String(),
		JoinedAt:        now,
		UpdatedAt:       now,
	}

	for range codeAttempts {
		code, err := s.code()
		if err != nil {
			return Created{}, err
		}
		p, err := s.store.CreatePool(ctx, model.Pool{
			Code:             code,
			Name:             strings.TrimSpace(name),
			CreatorTokenHash: auth.HashToken(creatorToken).String(),
			CreatedAt:        now,
		}, creator)
		if errors.Is(err, store.ErrConflict) {
			s.logger.Warn("pool code collision, retrying", "code", code)
			continue
		}
		if err != nil {
			return Created{}, fmt.Errorf("create pool: %w", err)
		}

		s.logger.Info("pool created", "code", p.Code)
		return Created{Code: p.Code, Name: p.Name, CreatorToken: creatorToken, MemberToken: memberToken}, nil
	}
	return Created{}, fmt.Errorf("create pool: no unique code after %d attempts", codeAttempts)
}

// Get returns the pool and up to limit members in join order.
func (s *Service) Get(ctx context.Context, code string, limit int) (View, error) {
	if limit <= 0 {
		limit = DefaultMemberLimit
	}
	p, err := s.pool(ctx, code)
	if err != nil {
		return View{}, err
	}

	members, err := s.store.PoolMembers(ctx, p.ID, limit)
	if err != nil {
		return View{}, fmt.Errorf("list members: %w", err)
	}

	v := View{Code: p.Code, Name: p.Name, CreatedAt: p.CreatedAt, Members: make([]MemberView, 0, len(members))}
	for _, m := range members {
		v.Members = append(v.Members, MemberView{
			DisplayName: m.DisplayName,
			BracketData: m.BracketData,
			JoinedAt:    m.JoinedAt,
			UpdatedAt:   m.UpdatedAt,
		})
	}
	return v, nil
}

// Join adds displayName to the pool.
func (s *Service) Join(ctx context.Context, code, displayName, bracket string) (Joined, error) {
	if err := checkLen("display_name", displayName, MaxDisplayName); err != nil {
		return Joined{}, err
	}
	if err := checkLen("bracket_data", bracket, MaxBracketData); err != nil {
		return Joined{}, err
	}

	p, err := s.pool(ctx, code)
	if err != nil {
		return Joined{}, err
	}

	token, err := s.token()
	if err != nil {
		return Joined{}, err
	}
	now := s.now().UTC()
	_, err = s.store.AddPoolMember(ctx, model.PoolMember{
		PoolID:          p.ID,
		DisplayName:     strings.TrimSpace(displayName),
		BracketData:     bracket,
		MemberTokenHash: auth.HashToken(token).String(),
		JoinedAt:        now,
		UpdatedAt:       now,
	})
	if errors.Is(err, store.ErrConflict) {
		return Joined{}, fmt.Errorf("%w: %q", ErrNameTaken, strings.TrimSpace(displayName))
	}
	if err != nil {
		return Joined{}, fmt.Errorf("join pool: %w", err)
	}

	return Joined{MemberToken: token, PoolName: p.Name, PoolCode: p.Code}, nil
}

// UpdateBracket replaces a member's bracket. token must be the member token.
func (s *Service) UpdateBracket(ctx context.Context, code, displayName, token, bracket string) error {
	if err := checkLen("bracket_data", bracket, MaxBracketData); err != nil {
		return err
	}
	m, err := s.authorizeMember(ctx, code, displayName, token)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePoolBracket(ctx, m.ID, bracket, s.now().UTC()); err != nil {
		return fmt.Errorf("update bracket: %w", notFound(err))
	}
	return nil
}

// Leave removes a member. token must be the member token.
func (s *Service) Leave(ctx context.Context, code, displayName, token string) error {
	m, err := s.authorizeMember(ctx, code, displayName, token)
	if err != nil {
		return err
	}
	if err := s.store.DeletePoolMember(ctx, m.ID); err != nil {
		return fmt.Errorf("leave pool: %w", notFound(err))
	}
	return nil
}

// Delete removes the pool and its members. token must be the creator token.
func (s *Service) Delete(ctx context.Context, code, token string) error {
	if token == "" {
		return ErrTokenRequired
	}
	p, err := s.pool(ctx, code)
	if err != nil {
		return err
	}
	if !auth.MatchesDigest(token, p.CreatorTokenHash) {
		return ErrInvalidToken
	}
	if err := s.store.DeletePool(ctx, p.ID); err != nil {
		return fmt.Errorf("delete pool: %w", notFound(err))
	}
	s.logger.Info("pool deleted", "code", p.Code)
	return nil
}

func (s *Service) authorizeMember(ctx context.Context, code, displayName, token string) (model.PoolMember, error) {
	if token == "" {
		return model.PoolMember{}, ErrTokenRequired
	}
	p, err := s.pool(ctx, code)
	if err != nil {
		return model.PoolMember{}, err
	}
	m, err := s.store.PoolMember(ctx, p.ID, displayName)
	if err != nil {
		return model.PoolMember{}, fmt.Errorf("member %q: %w", displayName, notFound(err))
	}
	if !auth.MatchesDigest(token, m.MemberTokenHash) {
		return model.PoolMember{}, ErrInvalidToken
	}
	return m, nil
}

func (s *Service) pool(ctx context.Context, code string) (model.Pool, error) {
	p, err := s.store.PoolByCode(ctx, code)
	if err != nil {
		return model.Pool{}, fmt.Errorf("pool %q: %w", code, notFound(err))
	}
	return p, nil
}

// code returns CodePrefix followed by 8 random hex characters.
func (s *Service) code() (string, error) {
	b := make([]byte, 4)
	if _, err := io.ReadFull(s.rand, b); err != nil {
		return "", fmt.Errorf("generate pool code: %w", err)
	}
	return CodePrefix + hex.EncodeToString(b), nil
}

// token returns 24 random bytes, URL-safe base64 encoded.
func (s *Service) token() (string, error) {
	b := make([]byte, 24)
	if _, err := io.ReadFull(s.rand, b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func checkLen(field, v string, limit int) error {
	if n := utf8.RuneCountInString(v); n < 1 || n > limit {
		return &ValidationError{Field: field, Max: limit}
	}
	return nil
}
