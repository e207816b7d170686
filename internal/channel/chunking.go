package channel

import "strings"

// ChunkConfig controls how long text is split for platforms that cap the
// size of a single text element.
type ChunkConfig struct {
	// MaxLength is the maximum number of bytes per chunk.
	// A value <= 0 means no splitting.
	MaxLength int

	// PreserveBlocks avoids splitting inside fenced code blocks (``` ... ```).
	PreserveBlocks bool
}

// SplitText breaks text into chunks of at most cfg.MaxLength bytes, cutting
// at line boundaries where possible. When PreserveBlocks is set a fenced
// block may grow up to twice the limit to stay whole.
func SplitText(text string, cfg ChunkConfig) []string {
	if cfg.MaxLength <= 0 || len(text) <= cfg.MaxLength {
		return []string{text}
	}

	var (
		chunks  []string
		current strings.Builder
		inFence bool
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
			current.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		// The closing fence still belongs to the block.
		inBlock := inFence
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}

		size := current.Len() + len(line) + 1
		if size > cfg.MaxLength {
			if cfg.PreserveBlocks && inBlock && size <= cfg.MaxLength*2 {
				current.WriteString(line + "\n")
				continue
			}
			flush()
			if len(line)+1 > cfg.MaxLength {
				chunks = append(chunks, forceSplit(line, cfg.MaxLength)...)
				continue
			}
		}
		current.WriteString(line + "\n")
	}
	flush()

	return chunks
}

// forceSplit breaks a single long line into chunks of at most maxLen bytes.
func forceSplit(line string, maxLen int) []string {
	var parts []string
	for len(line) > maxLen {
		parts = append(parts, line[:maxLen])
		line = line[maxLen:]
	}
	if len(line) > 0 {
		parts = append(parts, line)
	}
	return parts
}
