package utils

import (
	"strings"
)

// ClosestMatch 在候选项中查找与目标最相似的一项，用于给出"是否想找"之类的提示
func ClosestMatch(target string, candidates []string) (string, float64) {
	best, bestScore := "", 0.0
	normalized := normalizeString(target)
	for _, c := range candidates {
		if score := Similarity(normalized, normalizeString(c)); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore
}

// Similarity 综合包含关系、编辑距离和最长公共子序列计算两个字符串的相似度，取值 [0,1]
func Similarity(a, b string) float64 {
	s1, s2 := []rune(a), []rune(b)
	if a == b {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	shorter, longer := len(s1), len(s2)
	if shorter > longer {
		shorter, longer = longer, shorter
	}

	containsScore := 0.0
	if strings.Contains(a, b) || strings.Contains(b, a) {
		containsScore = float64(shorter) / float64(longer)
	}
	editScore := 1.0 - float64(editDistance(s1, s2))/float64(longer)
	lcsScore := float64(2*longestCommonSubsequence(s1, s2)) / float64(len(s1)+len(s2))

	score := containsScore*0.3 + editScore*0.4 + lcsScore*0.3
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func normalizeString(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return RemoveAllPunctuation(strings.ReplaceAll(s, " ", ""))
}

func editDistance(s1, s2 []rune) int {
	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}

func longestCommonSubsequence(s1, s2 []rune) int {
	dp := make([][]int, len(s1)+1)
	for i := range dp {
		dp[i] = make([]int, len(s2)+1)
	}
	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			if s1[i-1] == s2[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else {
				dp[i][j] = max(dp[i-1][j], dp[i][j-1])
			}
		}
	}
	return dp[len(s1)][len(s2)]
}
