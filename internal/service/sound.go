package service

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/chatsounds/soundboard-server/internal/audit"
	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/repository"
)

const (
	DefaultSoundLevel = 75
	maxSoundName      = 100
	minCommandLength  = 2
	maxCommandLength  = 50
)

type SoundService struct {
	sounds    repository.SoundRepository
	publisher Publisher
}

func NewSoundService(sounds repository.SoundRepository, publisher Publisher) *SoundService {
	return &SoundService{sounds: sounds, publisher: publisher}
}

func (s *SoundService) List(ctx context.Context, limit, offset int) ([]model.Sound, int64, error) {
	sounds, err := s.sounds.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	total, err := s.sounds.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	return sounds, total, nil
}

func (s *SoundService) Get(ctx context.Context, id string) (*model.Sound, error) {
	sound, err := s.sounds.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if sound == nil {
		return nil, apperrors.NotFound("Sound")
	}
	return sound, nil
}

func (s *SoundService) Create(ctx context.Context, params model.CreateSoundParams) (*model.Sound, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Command = strings.TrimSpace(params.Command)
	params.Path = strings.TrimSpace(params.Path)
	if params.Level == 0 {
		params.Level = DefaultSoundLevel
	}
	if params.Access == "" {
		params.Access = model.TierAll
	}
	if params.Format == "" {
		if f, ok := model.FormatFromPath(params.Path); ok {
			params.Format = f
		} else {
			params.Format = model.FormatMP3
		}
	}

	if err := validateSoundName(params.Name); err != nil {
		return nil, err
	}
	if err := validateCommand(params.Command); err != nil {
		return nil, err
	}
	if err := validateSoundFields(params.Level, params.Access, params.Format); err != nil {
		return nil, err
	}
	if params.Path == "" {
		return nil, apperrors.MissingRequired("path")
	}

	sound, err := s.sounds.Create(ctx, params)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.AlreadyExists("Command " + params.Command)
		}
		return nil, apperrors.Database(err)
	}

	s.changed(ctx, "created", sound)
	return sound, nil
}

func (s *SoundService) Update(ctx context.Context, id string, params model.UpdateSoundParams) (*model.Sound, error) {
	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if err := validateSoundName(name); err != nil {
			return nil, err
		}
		params.Name = &name
	}
	if params.Command != nil {
		command := strings.TrimSpace(*params.Command)
		if err := validateCommand(command); err != nil {
			return nil, err
		}
		params.Command = &command
	}
	if params.Level != nil && (*params.Level < 1 || *params.Level > 100) {
		return nil, apperrors.InvalidInput("level", "must be between 1 and 100")
	}
	if params.Access != nil && !params.Access.Valid() {
		return nil, apperrors.InvalidInput("access", "must be one of ALL, MOD, SUB, VIP")
	}
	if params.Format != nil && !params.Format.Valid() {
		return nil, apperrors.InvalidInput("format", "must be one of MP3, WAV, OGG, FLAC")
	}
	if params.Path != nil && strings.TrimSpace(*params.Path) == "" {
		return nil, apperrors.MissingRequired("path")
	}

	sound, err := s.sounds.Update(ctx, id, params)
	if err != nil {
		if repository.IsUniqueViolation(err) && params.Command != nil {
			return nil, apperrors.AlreadyExists("Command " + *params.Command)
		}
		return nil, apperrors.Database(err)
	}
	if sound == nil {
		return nil, apperrors.NotFound("Sound")
	}

	s.changed(ctx, "updated", sound)
	return sound, nil
}

// Delete removes the sound. Its play log stays and is reported under the
// unknown placeholder.
func (s *SoundService) Delete(ctx context.Context, id string) error {
	deleted, err := s.sounds.Delete(ctx, id)
	if err != nil {
		return apperrors.Database(err)
	}
	if !deleted {
		return apperrors.NotFound("Sound")
	}

	s.changed(ctx, "deleted", &model.Sound{ID: id})
	return nil
}

func (s *SoundService) changed(ctx context.Context, action string, sound *model.Sound) {
	audit.Log(ctx, audit.Event{
		Type:    audit.EventCatalogChanged,
		Details: map[string]interface{}{"action": action, "soundId": sound.ID, "command": sound.Command},
	})
	payload := map[string]any{"action": action, "id": sound.ID}
	if err := s.publisher.Publish(ctx, model.EventSoundsChanged, payload); err != nil {
		log.Warn().Err(err).Str("soundId", sound.ID).Msg("failed to broadcast catalog change")
	}
}

func validateSoundName(name string) error {
	if name == "" {
		return apperrors.MissingRequired("name")
	}
	if utf8.RuneCountInString(name) > maxSoundName {
		return apperrors.InvalidInput("name", "must be at most 100 characters")
	}
	return nil
}

func validateCommand(command string) error {
	if command == "" {
		return apperrors.MissingRequired("command")
	}
	if !strings.HasPrefix(command, model.CommandPrefix) {
		return apperrors.InvalidInput("command", "must start with !")
	}
	if n := len(command); n < minCommandLength || n > maxCommandLength {
		return apperrors.InvalidInput("command", "must be between 2 and 50 characters")
	}
	if strings.IndexFunc(command, unicode.IsSpace) >= 0 {
		return apperrors.InvalidInput("command", "must not contain whitespace")
	}
	return nil
}

func validateSoundFields(level int, access model.AccessTier, format model.AudioFormat) error {
	if level < 1 || level > 100 {
		return apperrors.InvalidInput("level", "must be between 1 and 100")
	}
	if !access.Valid() {
		return apperrors.InvalidInput("access", "must be one of ALL, MOD, SUB, VIP")
	}
	if !format.Valid() {
		return apperrors.InvalidInput("format", "must be one of MP3, WAV, OGG, FLAC")
	}
	return nil
}
