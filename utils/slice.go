// Copyright (C) 2025 pwnarch
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package utils

func Filter[T any](s []T, f func(T) bool) []T {
	r := make([]T, 0, len(s))
	for _, v := range s {
		if f(v) {
			r = append(r, v)
		}
	}
	return r
}

func Map[T, U any](s []T, f func(T) U) []U {
	r := make([]U, len(s))
	for i, v := range s {
		r[i] = f(v)
	}
	return r
}

// UniqBy keeps the first occurrence of every key and preserves input order.
func UniqBy[T any, K comparable](s []T, f func(T) K) []T {
	seen := make(map[K]struct{}, len(s))
	r := make([]T, 0, len(s))
	for _, v := range s {
		k := f(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		r = append(r, v)
	}
	return r
}

func Uniq[T comparable](s []T) []T {
	return UniqBy(s, func(v T) T { return v })
}

func Keys[K comparable, V any](m map[K]V) []K {
	r := make([]K, 0, len(m))
	for k := range m {
		r = append(r, k)
	}
	return r
}
