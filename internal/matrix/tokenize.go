// Package matrix builds the feature-by-document comparison matrix and
// derives novelty candidates from it. Matching is lexical token overlap:
// claims text is matched first (it defines legal scope), with the abstract
// as weaker fallback evidence.
package matrix

import (
	"regexp"
	"strings"
)

// tokenRe matches ASCII terms and CJK runs. Chinese claims have no word
// boundaries, so short character runs stand in for terms.
var tokenRe = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_-]{1,30}|[\x{4e00}-\x{9fff}]{2,8}`)

// genericTerms are words too common in patent prose to carry signal,
// bilingual since CN prior art is frequent in the recall sets.
var genericTerms = map[string]bool{
	"方法": true, "系统": true, "装置": true, "模块": true, "步骤": true,
	"数据": true, "信息": true, "处理": true, "实现": true, "用于": true,
	"包括": true, "其中": true, "一种": true, "技术": true, "特征": true,
	"method": true, "system": true, "device": true, "module": true,
	"step": true, "data": true, "information": true, "process": true,
	"processing": true, "implement": true, "including": true,
	"wherein": true, "a": true, "an": true, "the": true,
}

// synonyms expands tokens across the CN/EN boundary so an English feature
// phrase can still hit a Chinese claims text and vice versa.
var synonyms = map[string][]string{
	"cache":     {"缓存"},
	"缓存":        {"cache"},
	"dedup":     {"去重", "去重复", "重复消除"},
	"去重":        {"dedup", "deduplication"},
	"scheduler": {"调度", "调度器"},
	"调度":        {"scheduler", "scheduling"},
	"pipeline":  {"流水线", "管线"},
	"流水线":       {"pipeline"},
	"retry":     {"重试"},
	"重试":        {"retry"},
	"score":     {"评分", "打分"},
	"scoring":   {"评分", "打分"},
	"评分":        {"score", "scoring"},
	"ranking":   {"排序"},
	"排序":        {"ranking"},
	"vector":    {"向量"},
	"向量":        {"vector", "embedding"},
	"embedding": {"向量", "嵌入"},
}

// Tokenize extracts the matchable terms of a feature description: generic
// terms dropped, synonyms expanded, order-preserving dedup.
func Tokenize(text string) []string {
	raw := tokenRe.FindAllString(text, -1)

	// CJK runs carry no word boundaries; overlapping bigrams approximate
	// terms well enough for containment matching.
	var terms []string
	for _, t := range raw {
		r := []rune(t)
		if len(r) > 2 && r[0] >= 0x4e00 && r[0] <= 0x9fff {
			for i := 0; i+2 <= len(r); i++ {
				terms = append(terms, string(r[i:i+2]))
			}
			continue
		}
		terms = append(terms, t)
	}

	var expanded []string
	for _, t := range terms {
		tl := strings.ToLower(t)
		if genericTerms[tl] || len(t) < 2 {
			continue
		}
		expanded = append(expanded, tl)
		for _, s := range synonyms[tl] {
			expanded = append(expanded, strings.ToLower(s))
		}
	}

	seen := map[string]bool{}
	out := expanded[:0]
	for _, t := range expanded {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// scoreTokens is the fraction of tokens found in text (already lowercased).
func scoreTokens(tokens []string, text string) float64 {
	if len(tokens) == 0 || text == "" {
		return 0
	}
	hits := 0
	for _, t := range tokens {
		if strings.Contains(text, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}
