package ingestion

import (
	"bufio"
	"bytes"
	"strings"
)

// candidateDelimiters in tie-break order.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

const sniffLines = 10

// SniffDelimiter guesses the field delimiter from the first lines of data.
// A delimiter that occurs the same non-zero number of times on every sampled
// line wins over one that varies; among those the most frequent wins. Comma
// is returned when nothing is found.
func SniffDelimiter(sample []byte) rune {
	lines := sampleLines(sample, sniffLines)
	if len(lines) == 0 {
		return ','
	}

	best := ','
	bestScore := -1
	for _, d := range candidateDelimiters {
		counts := make([]int, len(lines))
		for i, line := range lines {
			counts[i] = countOutsideQuotes(line, d)
		}
		if counts[0] == 0 {
			continue
		}
		consistent := true
		for _, c := range counts[1:] {
			if c != counts[0] {
				consistent = false
				break
			}
		}
		score := counts[0]
		if consistent {
			score += 1 << 16
		}
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

func sampleLines(sample []byte, n int) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(sample))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() && len(lines) < n {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func countOutsideQuotes(line string, d rune) int {
	inQuotes := false
	n := 0
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == d && !inQuotes:
			n++
		}
	}
	return n
}
