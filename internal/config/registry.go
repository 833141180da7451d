package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/echoscribe/pkg/capability/asr"
	"github.com/MrWong99/echoscribe/pkg/capability/diarize"
	"github.com/MrWong99/echoscribe/pkg/capability/speakerembed"
	"github.com/MrWong99/echoscribe/pkg/textembed"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// capability type. It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	asr          map[string]func(ASRConfig) (asr.Transcriber, error)
	diarize      map[string]func(ProviderEntry) (diarize.Diarizer, error)
	speakerEmbed map[string]func(ProviderEntry) (speakerembed.Embedder, error)
	textEmbed    map[string]func(ProviderEntry) (textembed.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		asr:          make(map[string]func(ASRConfig) (asr.Transcriber, error)),
		diarize:      make(map[string]func(ProviderEntry) (diarize.Diarizer, error)),
		speakerEmbed: make(map[string]func(ProviderEntry) (speakerembed.Embedder, error)),
		textEmbed:    make(map[string]func(ProviderEntry) (textembed.Provider, error)),
	}
}

// RegisterASR registers a transcriber factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterASR(name string, factory func(ASRConfig) (asr.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[name] = factory
}

// RegisterDiarizer registers a diarizer factory under name.
func (r *Registry) RegisterDiarizer(name string, factory func(ProviderEntry) (diarize.Diarizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diarize[name] = factory
}

// RegisterSpeakerEmbedder registers a voice-embedding factory under name.
func (r *Registry) RegisterSpeakerEmbedder(name string, factory func(ProviderEntry) (speakerembed.Embedder, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speakerEmbed[name] = factory
}

// RegisterTextEmbedder registers a text-embedding factory under name.
func (r *Registry) RegisterTextEmbedder(name string, factory func(ProviderEntry) (textembed.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textEmbed[name] = factory
}

// CreateASR instantiates a transcriber using the factory registered under cfg.Provider.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateASR(cfg ASRConfig) (asr.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.asr[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr/%q", ErrProviderNotRegistered, cfg.Provider)
	}
	return factory(cfg)
}

// CreateDiarizer instantiates a diarizer using the factory registered under entry.Name.
func (r *Registry) CreateDiarizer(entry ProviderEntry) (diarize.Diarizer, error) {
	r.mu.RLock()
	factory, ok := r.diarize[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: diarize/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSpeakerEmbedder instantiates a voice embedder using the factory registered under entry.Name.
func (r *Registry) CreateSpeakerEmbedder(entry ProviderEntry) (speakerembed.Embedder, error) {
	r.mu.RLock()
	factory, ok := r.speakerEmbed[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: speaker_embed/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTextEmbedder instantiates a text embedder using the factory registered under entry.Name.
func (r *Registry) CreateTextEmbedder(entry ProviderEntry) (textembed.Provider, error) {
	r.mu.RLock()
	factory, ok := r.textEmbed[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
