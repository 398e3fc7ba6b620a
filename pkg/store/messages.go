package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"forbias/pkg/domain"
	"forbias/pkg/storage"
)

// Create stamps draft with a fresh id, the current time and zero likes, then
// appends it to the collection. Field contents are stored as given.
func (s *Store) Create(ctx context.Context, draft domain.Draft) (domain.Message, error) {
	if s.medium == nil {
		return domain.Message{}, ErrNoMedium
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.readMessages(ctx)
	if err != nil {
		return domain.Message{}, err
	}
	msg := domain.Message{
		ID:            s.uniqueID(messages),
		RecipientName: draft.RecipientName,
		Message:       draft.Message,
		SongID:        draft.SongID,
		SongName:      draft.SongName,
		ArtistName:    draft.ArtistName,
		AlbumImage:    draft.AlbumImage,
		CreatedAt:     s.now().UnixMilli(),
		Likes:         0,
	}
	messages = append(messages, msg)
	data, err := json.Marshal(messages)
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode messages: %w", err)
	}
	if err := s.medium.Set(ctx, s.messagesKey, data); err != nil {
		return domain.Message{}, fmt.Errorf("write messages: %w", err)
	}
	return msg, nil
}

// ListAll returns every record in insertion order. It never fails: a missing
// medium or an unreadable blob yields an empty slice.
func (s *Store) ListAll(ctx context.Context) []domain.Message {
	if s.medium == nil {
		return []domain.Message{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	messages, err := s.readMessages(ctx)
	if err != nil {
		s.logger.Warn("store_read_failed", "key", s.messagesKey, "err", err)
		return []domain.Message{}
	}
	return messages
}

// ListByRecipient returns the records whose recipient equals name, ignoring case.
func (s *Store) ListByRecipient(ctx context.Context, name string) []domain.Message {
	want := strings.ToLower(name)
	out := []domain.Message{}
	for _, m := range s.ListAll(ctx) {
		if strings.ToLower(m.RecipientName) == want {
			out = append(out, m)
		}
	}
	return out
}

// Get finds a record by id.
func (s *Store) Get(ctx context.Context, id string) (domain.Message, bool) {
	for _, m := range s.ListAll(ctx) {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Message{}, false
}

// Like adds one like to record id unless this view's liked-set already holds
// it. Unknown ids are ignored. It returns the record as stored after the call
// and what the call did. A medium that cannot be read fails the call without
// writing.
func (s *Store) Like(ctx context.Context, id string) (domain.Message, LikeOutcome, error) {
	if s.medium == nil {
		return domain.Message{}, LikeUnknown, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.readMessages(ctx)
	if err != nil {
		return domain.Message{}, LikeUnknown, err
	}
	idx := slices.IndexFunc(messages, func(m domain.Message) bool { return m.ID == id })
	if idx < 0 {
		return domain.Message{}, LikeUnknown, nil
	}
	liked, err := s.readLiked(ctx)
	if err != nil {
		return domain.Message{}, LikeUnknown, err
	}
	if slices.Contains(liked, id) {
		return messages[idx], LikeDuplicate, nil
	}

	messages[idx].Likes++
	liked = append(liked, id)
	messagesData, err := json.Marshal(messages)
	if err != nil {
		return domain.Message{}, LikeUnknown, fmt.Errorf("encode messages: %w", err)
	}
	likedData, err := json.Marshal(liked)
	if err != nil {
		return domain.Message{}, LikeUnknown, fmt.Errorf("encode liked set: %w", err)
	}
	// The liked-set goes first: a failure between the writes may lose a like
	// but never counts one twice.
	err = storage.SetAll(ctx, s.medium, []storage.Entry{
		{Key: s.likedKey, Value: likedData},
		{Key: s.messagesKey, Value: messagesData},
	})
	if err != nil {
		return domain.Message{}, LikeUnknown, fmt.Errorf("write like: %w", err)
	}
	return messages[idx], LikeCounted, nil
}

// HasLiked reports whether id is in this view's liked-set.
func (s *Store) HasLiked(ctx context.Context, id string) bool {
	if s.medium == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	liked, err := s.readLiked(ctx)
	if err != nil {
		s.logger.Warn("store_read_failed", "key", s.likedKey, "err", err)
		return false
	}
	return slices.Contains(liked, id)
}

func (s *Store) readMessages(ctx context.Context) ([]domain.Message, error) {
	var messages []domain.Message
	ok, err := s.readBlob(ctx, s.messagesKey, &messages)
	if err != nil {
		return nil, err
	}
	if !ok || messages == nil {
		return []domain.Message{}, nil
	}
	return messages, nil
}

func (s *Store) readLiked(ctx context.Context) ([]string, error) {
	var liked []string
	ok, err := s.readBlob(ctx, s.likedKey, &liked)
	if err != nil {
		return nil, err
	}
	if !ok || liked == nil {
		return []string{}, nil
	}
	return liked, nil
}

// readBlob decodes key into out. Missing and corrupt blobs report false with no
// error; any other medium failure is returned.
func (s *Store) readBlob(ctx context.Context, key string, out any) (bool, error) {
	data, err := s.medium.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("store_blob_corrupt", "key", key, "err", err)
		return false, nil
	}
	return true, nil
}

func (s *Store) uniqueID(existing []domain.Message) string {
	for {
		id := s.newID()
		if !slices.ContainsFunc(existing, func(m domain.Message) bool { return m.ID == id }) {
			return id
		}
	}
}
