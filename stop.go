package xogen

import "strings"

// TruncateAtStop cuts t at the earliest occurrence of any stop sequence.
// The stop sequence itself is removed.
//
// Known tokens are trimmed along with the text. A token split by the cut
// keeps its prefix and loses its log-probability, since the score belonged
// to the whole token. If the tokens do not spell out the text exactly, the
// result carries no token detail.
func TruncateAtStop(t Tokens, stop []string) Tokens {
	cut := -1
	for _, s := range stop {
		if s == "" {
			continue
		}
		if i := strings.Index(t.Text, s); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut < 0 {
		return t
	}

	out := Tokens{Text: t.Text[:cut]}
	if t.Tokens == nil || strings.Join(t.Tokens, "") != t.Text {
		return out
	}

	out.Tokens = []string{}
	if t.Logprobs != nil {
		out.Logprobs = []*float64{}
	}
	pos := 0
	for i, tok := range t.Tokens {
		if pos >= cut {
			break
		}
		end := pos + len(tok)
		if end <= cut {
			out.Tokens = append(out.Tokens, tok)
			if t.Logprobs != nil {
				out.Logprobs = append(out.Logprobs, t.Logprobs[i])
			}
		} else {
			out.Tokens = append(out.Tokens, tok[:cut-pos])
			if t.Logprobs != nil {
				out.Logprobs = append(out.Logprobs, nil)
			}
		}
		pos = end
	}
	return out
}
