package script

import "strings"

const (
	WordsPerSecond  = 3
	MinWords        = 10
	AvgCharsPerWord = 6
)

type Limited struct {
	Text       string
	WasTrimmed bool
	MaxWords   int
	WordCount  int
}

// MaxWordsForDuration returns 0 for a missing duration, meaning "no limit".
func MaxWordsForDuration(durationSeconds int) int {
	if durationSeconds <= 0 {
		return 0
	}
	return max(MinWords, durationSeconds*WordsPerSecond)
}

func MaxCharsForDuration(durationSeconds int) int {
	return MaxWordsForDuration(durationSeconds) * AvgCharsPerWord
}

func CountWords(text string) int {
	return len(strings.Fields(strings.TrimSpace(text)))
}

func EnforceWordLimit(text string, durationSeconds int) Limited {
	maxWords := MaxWordsForDuration(durationSeconds)
	words := strings.Fields(strings.TrimSpace(text))

	if maxWords == 0 || len(words) <= maxWords {
		return Limited{
			Text:      text,
			MaxWords:  maxWords,
			WordCount: len(words),
		}
	}

	return Limited{
		Text:       strings.Join(words[:maxWords], " "),
		WasTrimmed: true,
		MaxWords:   maxWords,
		WordCount:  maxWords,
	}
}
