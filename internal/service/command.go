package service

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/chatsounds/soundboard-server/internal/audit"
	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
	"github.com/chatsounds/soundboard-server/internal/metrics"
	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/repository"
	"github.com/chatsounds/soundboard-server/internal/twitch"
)

// Publisher is the broadcast side of an accepted trigger.
type Publisher interface {
	Publish(ctx context.Context, kind model.EventKind, payload any) error
}

// DashboardUsername is recorded for plays started from the dashboard.
const DashboardUsername = "dashboard"

// Decision is the result of an access check. User is the record the check
// ran against, created on demand.
type Decision struct {
	Allowed bool
	Reason  apperrors.ErrorCode
	User    *model.User
}

// CommandService turns chat commands into plays.
//
// Triggers are neither rate limited nor de-duplicated: every chat line is
// handled on its own. Accounting is not transactional; the play record is
// written first and counter failures are logged, never rolled back.
type CommandService struct {
	sounds    repository.SoundRepository
	users     repository.UserRepository
	plays     repository.PlayRepository
	publisher Publisher
	metrics   metrics.Recorder
	clock     clockwork.Clock
}

func NewCommandService(
	sounds repository.SoundRepository,
	users repository.UserRepository,
	plays repository.PlayRepository,
	publisher Publisher,
	recorder metrics.Recorder,
	clock clockwork.Clock,
) *CommandService {
	return &CommandService{
		sounds:    sounds,
		users:     users,
		plays:     plays,
		publisher: publisher,
		metrics:   recorder,
		clock:     clock,
	}
}

// Resolve looks up the sound for an exact command token. A miss returns nil.
func (s *CommandService) Resolve(ctx context.Context, command string) (*model.Sound, error) {
	sound, err := s.sounds.FindByCommand(ctx, command)
	if err != nil {
		return nil, fmt.Errorf("resolve command: %w", err)
	}
	return sound, nil
}

// Authorize finds or creates the user and checks the sound's tier against
// the user's flags plus any grants carried by the chat message.
func (s *CommandService) Authorize(ctx context.Context, username string, sound *model.Sound, grants ...model.AccessTier) (Decision, error) {
	user, created, err := s.users.FindOrCreate(ctx, username)
	if err != nil {
		return Decision{}, fmt.Errorf("find or create user: %w", err)
	}
	if created {
		log.Info().Str("username", username).Msg("user created from chat")
	}

	if !user.CanUse(sound.Access, grants...) {
		return Decision{Allowed: false, Reason: apperrors.ErrCodeInsufficientTier, User: user}, nil
	}
	return Decision{Allowed: true, User: user}, nil
}

// Dispatch records an accepted trigger and broadcasts it.
func (s *CommandService) Dispatch(ctx context.Context, username string, sound *model.Sound) (*model.PlayEvent, error) {
	return s.dispatch(ctx, username, nil, sound)
}

func (s *CommandService) dispatch(ctx context.Context, username string, user *model.User, sound *model.Sound) (*model.PlayEvent, error) {
	now := s.clock.Now()

	var userID *string
	if user != nil {
		userID = &user.ID
	}
	play, err := s.plays.Create(ctx, sound.ID, username, userID, now)
	if err != nil {
		return nil, fmt.Errorf("record play: %w", err)
	}

	if ok, err := s.sounds.IncrementPlayCount(ctx, sound.ID, now); err != nil {
		s.metrics.RecordAccountingFailure("sound_counter")
		log.Error().Err(err).Str("soundId", sound.ID).Str("playId", play.ID).Msg("failed to increment play count")
	} else if !ok {
		log.Warn().Str("soundId", sound.ID).Str("playId", play.ID).Msg("sound deleted before play count update")
	}

	if user == nil {
		user, _, err = s.users.FindOrCreate(ctx, username)
		if err != nil {
			s.metrics.RecordAccountingFailure("user_lookup")
			log.Error().Err(err).Str("username", username).Msg("failed to find user for command count")
		}
	}
	if user != nil {
		if _, err := s.users.IncrementCommandCount(ctx, user.ID, now); err != nil {
			s.metrics.RecordAccountingFailure("user_counter")
			log.Error().Err(err).Str("username", username).Str("playId", play.ID).Msg("failed to increment command count")
		}
	}

	if err := s.publisher.Publish(ctx, model.EventPlaySound, sound.PlayPayload(username)); err != nil {
		log.Error().Err(err).Str("soundId", sound.ID).Msg("failed to broadcast play")
	}

	log.Info().
		Str("command", sound.Command).
		Str("soundId", sound.ID).
		Str("username", username).
		Msg("sound played")

	return play, nil
}

// TriggerFromChat handles one chat line end to end. Lines that are not
// commands and commands with no sound are dropped without error.
func (s *CommandService) TriggerFromChat(ctx context.Context, username, text string, grants ...model.AccessTier) (model.TriggerOutcome, error) {
	outcome, err := s.trigger(ctx, username, text, grants)
	s.metrics.RecordTrigger(outcome)
	return outcome, err
}

func (s *CommandService) trigger(ctx context.Context, username, text string, grants []model.AccessTier) (model.TriggerOutcome, error) {
	command, ok := twitch.ParseCommand(text)
	if !ok {
		return model.OutcomeIgnored, nil
	}

	sound, err := s.Resolve(ctx, command)
	if err != nil {
		return model.OutcomeFailed, err
	}
	if sound == nil {
		log.Debug().Str("command", command).Str("username", username).Msg("no sound for command")
		return model.OutcomeUnknownCommand, nil
	}

	decision, err := s.Authorize(ctx, username, sound, grants...)
	if err != nil {
		return model.OutcomeFailed, err
	}
	if !decision.Allowed {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventTriggerDenied,
			Login:   username,
			Details: map[string]interface{}{"command": command, "required": string(sound.Access)},
		})
		return model.OutcomeDenied, nil
	}

	if _, err := s.dispatch(ctx, username, decision.User, sound); err != nil {
		return model.OutcomeFailed, err
	}
	return model.OutcomePlayed, nil
}

// PlaySound plays a sound from the dashboard, skipping the tier check.
func (s *CommandService) PlaySound(ctx context.Context, soundID, username string) (*model.PlayEvent, error) {
	sound, err := s.sounds.FindByID(ctx, soundID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if sound == nil {
		return nil, apperrors.NotFound("Sound")
	}
	if username == "" {
		username = DashboardUsername
	}

	play, err := s.Dispatch(ctx, username, sound)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return play, nil
}
