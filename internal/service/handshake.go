package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/pairing-server-go/internal/errors"
	"github.com/openclaw/pairing-server-go/internal/model"
	"github.com/openclaw/pairing-server-go/internal/repository"
	"github.com/openclaw/pairing-server-go/internal/store"
	"github.com/openclaw/pairing-server-go/internal/util"
)

const (
	maxGenerateAttempts = 10
	defaultAgentName    = "Agent"
)

// SiteInfo is the public site identity included in status and claim
// responses. It contains nothing sensitive.
type SiteInfo struct {
	Name        string
	URL         string
	RestURL     string
	ManifestURL string
}

type GenerateResult struct {
	Code      string
	ExpiresIn int
	ExpiresAt time.Time
	ForUser   string
}

type StatusResult struct {
	SiteName string
	SiteURL  string
}

type ClaimResult struct {
	SiteName    string
	SiteURL     string
	BaseURL     string
	Username    string
	Password    string
	ManifestURL string
	AgentName   string
	Message     string
}

// HandshakeService drives the pairing state machine: Unclaimed -> Claimed ->
// Delivered or Burned, with Unclaimed -> Expired handled entirely by the
// store's TTL. Once a claim commits, the code is consumed for good; no
// downstream failure reinstates it.
type HandshakeService struct {
	store  store.PairingStore
	users  repository.UserRepository
	issuer CredentialIssuer
	gen    *CodeGenerator
	site   SiteInfo
	ttl    time.Duration
	retain time.Duration
	now    func() time.Time
}

func NewHandshakeService(
	pairingStore store.PairingStore,
	users repository.UserRepository,
	issuer CredentialIssuer,
	site SiteInfo,
	ttl time.Duration,
	retain time.Duration,
) *HandshakeService {
	return &HandshakeService{
		store:  pairingStore,
		users:  users,
		issuer: issuer,
		gen:    NewCodeGenerator(),
		site:   site,
		ttl:    ttl,
		retain: retain,
		now:    time.Now,
	}
}

// Generate issues a fresh pairing code for the target account. The caller
// must hold the pairing capability; targeting another account additionally
// requires the admin capability. On refusal no code is created.
func (s *HandshakeService) Generate(ctx context.Context, caller *model.User, targetUserID string) (*GenerateResult, error) {
	if caller == nil || !caller.CanPair() {
		return nil, apperrors.Forbidden("You are not allowed to generate pairing codes")
	}

	target := caller
	if targetUserID != "" && targetUserID != caller.ID {
		if !caller.CanPairOthers() {
			return nil, apperrors.Forbidden("You are not allowed to generate pairing codes for other users")
		}
		found, err := s.users.FindByID(ctx, targetUserID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if found == nil {
			return nil, apperrors.NotFound("User")
		}
		target = found
	}

	now := s.now()
	rec := model.PairingCode{
		OwnerID:   target.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	// Redraw on collision: a clash with any live key means someone else's
	// pairing is in flight under that code.
	var code string
	for attempts := 0; attempts < maxGenerateAttempts; attempts++ {
		drawn, err := s.gen.Generate()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Failed to generate pairing code", err)
		}
		rec.Code = drawn

		stored, err := s.store.Put(ctx, drawn, rec, s.ttl)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Pairing store unavailable", err)
		}
		if stored {
			code = drawn
			break
		}
	}
	if code == "" {
		return nil, apperrors.Internal("Could not allocate a unique pairing code")
	}

	log.Info().
		Str("code", util.MaskCode(code)).
		Str("userId", target.ID).
		Time("expiresAt", rec.ExpiresAt).
		Msg("pairing code created")

	return &GenerateResult{
		Code:      code,
		ExpiresIn: int(s.ttl.Seconds()),
		ExpiresAt: rec.ExpiresAt,
		ForUser:   target.Username,
	}, nil
}

// Status is a public, read-only probe. It leaks nothing beyond the public
// site identity and a bounded failure reason; absent and expired codes are
// indistinguishable by design.
func (s *HandshakeService) Status(ctx context.Context, code string) (*StatusResult, error) {
	normalized := util.NormalizeCode(code)
	if !util.IsValidCode(normalized) {
		return nil, apperrors.InvalidCodeFormat()
	}

	rec, err := s.store.Get(ctx, normalized)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Pairing store unavailable", err)
	}
	if rec == nil {
		return nil, apperrors.InvalidCode()
	}
	if rec.Claimed {
		return nil, apperrors.CodeUsed()
	}

	return &StatusResult{
		SiteName: s.site.Name,
		SiteURL:  s.site.URL,
	}, nil
}

// Claim exchanges a valid code for a freshly minted credential. The code
// format is checked before any store access so enumeration noise never hits
// the store. Once the atomic claim commits, every subsequent failure leaves
// the code burned.
func (s *HandshakeService) Claim(ctx context.Context, code, agentName, agentID string) (*ClaimResult, error) {
	normalized := util.NormalizeCode(code)
	if !util.IsValidCode(normalized) {
		return nil, apperrors.InvalidCodeFormat()
	}
	if agentName == "" {
		agentName = defaultAgentName
	}

	rec, err := s.store.Claim(ctx, normalized, agentName, agentID, s.now(), s.retain)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyClaimed) {
			log.Warn().Str("code", util.MaskCode(normalized)).Msg("claim attempt on used pairing code")
			return nil, apperrors.CodeUsed()
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Pairing store unavailable", err)
	}
	if rec == nil {
		log.Warn().Str("code", util.MaskCode(normalized)).Msg("claim attempt on unknown pairing code")
		return nil, apperrors.InvalidCode()
	}

	owner, err := s.users.FindByID(ctx, rec.OwnerID)
	if err != nil {
		log.Error().Err(err).Str("userId", rec.OwnerID).Msg("claim: owner lookup failed")
		return nil, apperrors.Database(err)
	}
	if owner == nil {
		// The code is already consumed; there is no retry path.
		log.Error().Str("userId", rec.OwnerID).Msg("claim: owner account no longer exists, code burned")
		return nil, apperrors.UserNotFound()
	}

	minted, err := s.issuer.Mint(ctx, owner, agentName, agentID)
	if err != nil {
		// Deliberate fail-closed: the claim is not rolled back. The
		// operator issues a new code instead of retrying this one.
		log.Error().Err(err).Str("userId", owner.ID).Msg("claim: credential minting failed, code burned")
		return nil, apperrors.IssuanceFailed(err)
	}

	log.Info().
		Str("code", util.MaskCode(normalized)).
		Str("userId", owner.ID).
		Str("agentName", agentName).
		Msg("pairing claim succeeded")

	return &ClaimResult{
		SiteName:    s.site.Name,
		SiteURL:     s.site.URL,
		BaseURL:     s.site.RestURL,
		Username:    owner.Username,
		Password:    minted.Display,
		ManifestURL: s.site.ManifestURL,
		AgentName:   agentName,
		Message:     "Store this password now. It is shown exactly once.",
	}, nil
}
