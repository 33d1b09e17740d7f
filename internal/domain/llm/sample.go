package llm

import (
	"context"
	"fmt"
	"strings"
)

var sampleFacts = []struct {
	match string
	text  string
}{
	{"tree", "Trees are incredible living organisms! Did you know they communicate underground through a network of fungi? They also clean our air by absorbing carbon dioxide."},
	{"book", "Books have been around for over 5,000 years! The first books were written on clay tablets in ancient Mesopotamia."},
	{"cat", "Cats sleep for around 16 hours a day! Their whiskers help them determine if they can fit through tight spaces."},
	{"chair", "Chairs have been used by humans for over 5,000 years. Ancient Egyptian chairs were often made from ebony and ivory."},
	{"basketball", "The first basketball was actually a soccer ball! The game was invented in 1891 by Dr. James Naismith."},
}

// SampleFacts answers from a fixed table. Used when no API key is configured.
type SampleFacts struct{}

func (SampleFacts) GenerateFacts(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lower := strings.ToLower(label)
	for _, f := range sampleFacts {
		if strings.Contains(lower, f.match) {
			return f.text, nil
		}
	}
	return fmt.Sprintf("This is a %s! These are fascinating objects that have many interesting properties and uses.", label), nil
}
