package dispatch

import (
	"context"
	"sync"

	"horse.fit/glossian/internal/db"
	"horse.fit/glossian/internal/translation"
)

type stubStore struct {
	mu sync.Mutex

	messages map[db.Kind][]db.Message
	quests   []*db.QuestPlate
	nextID   int64

	findCalls   int
	insertCalls int
	updateCalls int

	findErr   error
	insertErr error
	// conflicts makes the next N quest updates fail with db.ErrConflict.
	conflicts int
	// onConflict runs when a conflict is injected, simulating another writer.
	onConflict func(plate *db.QuestPlate)
}

func newStubStore() *stubStore {
	return &stubStore{messages: map[db.Kind][]db.Message{}}
}

func (s *stubStore) FindMessage(_ context.Context, kind db.Kind, key db.LookupKey, matchEngine bool) (*db.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	for i := range s.messages[kind] {
		if key.Matches(&s.messages[kind][i], matchEngine) {
			row := s.messages[kind][i]
			return &row, nil
		}
	}
	return nil, db.ErrNoRows
}

func (s *stubStore) InsertMessage(_ context.Context, kind db.Kind, row *db.Message) (*db.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	s.nextID++
	stored := *row
	stored.ID = s.nextID
	stored.RowVersion = 1
	s.messages[kind] = append(s.messages[kind], stored)
	return &stored, nil
}

func (s *stubStore) rows(kind db.Kind) []db.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]db.Message(nil), s.messages[kind]...)
}

func (s *stubStore) FindQuestPlate(_ context.Context, key db.QuestKey, matchEngine bool) (*db.QuestPlate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, plate := range s.quests {
		if key.Matches(plate, matchEngine) {
			return plate.Clone(), nil
		}
	}
	return nil, db.ErrNoRows
}

func (s *stubStore) GetQuestPlate(_ context.Context, id int64) (*db.QuestPlate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, plate := range s.quests {
		if plate.ID == id {
			return plate.Clone(), nil
		}
	}
	return nil, db.ErrNoRows
}

func (s *stubStore) InsertQuestPlate(_ context.Context, plate *db.QuestPlate) (*db.QuestPlate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertCalls++
	s.nextID++
	stored := plate.Clone()
	stored.ID = s.nextID
	stored.RowVersion = 1
	s.quests = append(s.quests, stored)
	return stored.Clone(), nil
}

func (s *stubStore) UpdateQuestPlate(_ context.Context, plate *db.QuestPlate) (*db.QuestPlate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	for i, existing := range s.quests {
		if existing.ID != plate.ID {
			continue
		}
		if s.conflicts > 0 {
			s.conflicts--
			if s.onConflict != nil {
				s.onConflict(existing)
			}
			existing.RowVersion++
		}
		if existing.RowVersion != plate.RowVersion {
			return nil, db.ErrConflict
		}
		updated := plate.Clone()
		updated.RowVersion++
		s.quests[i] = updated
		return updated.Clone(), nil
	}
	return nil, db.ErrNoRows
}

func (s *stubStore) quest(id int64) *db.QuestPlate {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, plate := range s.quests {
		if plate.ID == id {
			return plate.Clone()
		}
	}
	return nil
}

type stubProvider struct {
	mu sync.Mutex

	engine       translation.Engine
	translations map[string]string
	calls        map[string]int
	block        map[string]chan struct{}

	fallback bool
	err      error
}

func newStubProvider(translations map[string]string) *stubProvider {
	return &stubProvider{
		translations: translations,
		calls:        map[string]int{},
		block:        map[string]chan struct{}{},
	}
}

func (p *stubProvider) Translate(ctx context.Context, req translation.TranslateRequest) (*translation.TranslateResponse, error) {
	p.mu.Lock()
	p.calls[req.Text]++
	gate := p.block[req.Text]
	fallback, err := p.fallback, p.err
	translated, ok := p.translations[req.Text]
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if fallback {
		return &translation.TranslateResponse{Text: req.Text, Engine: p.engine, Fallback: true}, nil
	}
	if !ok {
		translated = "fr:" + req.Text
	}
	return &translation.TranslateResponse{Text: translated, Engine: p.engine}, nil
}

func (p *stubProvider) Name() string                 { return p.engine.String() }
func (p *stubProvider) Engine() translation.Engine   { return p.engine }
func (p *stubProvider) SupportedLanguages() []string { return []string{"fr"} }

func (p *stubProvider) callCount(text string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[text]
}

func (p *stubProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

func (p *stubProvider) gate(text string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{})
	p.block[text] = ch
	return ch
}
