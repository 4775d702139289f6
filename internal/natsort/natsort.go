/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package natsort implements human-friendly alphanumeric ordering of file
// names: runs of digits compare by numeric value instead of lexically, so
// "img2.png" sorts before "img10.png".
package natsort

import (
	"path/filepath"
	"sort"
	"strings"
)

// Compare orders a and b by splitting each into alternating runs of digits
// and non-digits. Digit runs compare numerically (arbitrary length, leading
// zeros ignored), non-digit runs compare case-insensitively. When one key is
// a prefix of the other, the shorter sorts first. Returns -1, 0 or +1.
//
// Names that differ only in leading zeros ("img01" vs "img1") compare equal;
// the sort helpers below are stable, so such names keep their input order.
func Compare(a, b string) int {
	ia, ib := 0, 0
	for ia < len(a) && ib < len(b) {
		ra, da, na := chunk(a, ia)
		rb, db, nb := chunk(b, ib)
		var c int
		switch {
		case da && db:
			c = compareNumeric(ra, rb)
		case !da && !db:
			c = strings.Compare(strings.ToLower(ra), strings.ToLower(rb))
		case da:
			// A digit run sorts before a text run, matching lexical order
			// of ASCII digits versus letters.
			c = -1
		default:
			c = 1
		}
		if c != 0 {
			return c
		}
		ia, ib = na, nb
	}
	switch {
	case ia < len(a):
		return 1
	case ib < len(b):
		return -1
	}
	return 0
}

// Less reports whether a orders before b under Compare.
func Less(a, b string) bool { return Compare(a, b) < 0 }

// SortStrings sorts xs in place using natural ordering. The sort is stable.
func SortStrings(xs []string) {
	sort.SliceStable(xs, func(i, j int) bool { return Less(xs[i], xs[j]) })
}

// SortPaths sorts file paths in place by the natural ordering of their
// basenames. Paths whose basenames compare equal keep their input order.
func SortPaths(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		return Less(filepath.Base(paths[i]), filepath.Base(paths[j]))
	})
}

// chunk returns the maximal digit or non-digit run starting at i, whether it
// is a digit run, and the index just past it. UTF-8 multibyte sequences fall
// into non-digit runs byte-wise, which is sufficient for run splitting.
func chunk(s string, i int) (string, bool, int) {
	j := i
	digits := isDigit(s[i])
	for j < len(s) && isDigit(s[j]) == digits {
		j++
	}
	return s[i:j], digits, j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// compareNumeric compares two digit runs by value without converting to a
// machine integer, so runs longer than an int64 are safe.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
