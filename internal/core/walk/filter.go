package walk

import (
	"path"
	"path/filepath"
	"slices"
)

// Reasons a path is left out of the file list.
const (
	ReasonSkipName    = "skip-name"
	ReasonVCS         = "vcs"
	ReasonHidden      = "hidden"
	ReasonVendor      = "vendor"
	ReasonIgnored     = "gitignore"
	ReasonNotIncluded = "not-included"
	ReasonExcluded    = "excluded"
)

// vcsDirs are never descended into, even with ScanAll.
var vcsDirs = []string{".git", ".hg", ".svn", ".bzr", "_darcs"}

// Filter decides inclusion path by path without walking, so the watcher
// and the lister agree on what belongs to a project.
type Filter struct {
	opts    Options
	ig      *ignoreMatcher
	include globSet
	exclude globSet
}

func NewFilter(root string, opts Options) (*Filter, error) {
	ig, err := loadIgnoreMatcher(root, opts.ScanAll)
	if err != nil {
		return nil, err
	}
	return &Filter{
		opts:    opts,
		ig:      ig,
		include: newGlobSet(opts.IncludeGlobs),
		exclude: newGlobSet(opts.ExcludeGlobs),
	}, nil
}

func (f *Filter) ShouldInclude(rel string, isDir bool) bool {
	return f.Reason(rel, isDir) == ""
}

// Reason returns why rel is excluded, or "" when it is included. rel is
// relative to the root, in either separator style.
func (f *Filter) Reason(rel string, isDir bool) string {
	if f == nil {
		return ReasonNotIncluded
	}
	rel = filepath.ToSlash(rel)
	name := path.Base(rel)

	switch {
	case slices.Contains(f.opts.SkipNames, name):
		return ReasonSkipName
	case isDir && slices.Contains(vcsDirs, name):
		return ReasonVCS
	case f.opts.ScanAll:
	case isHidden(name) && !f.opts.Dotfiles:
		return ReasonHidden
	case isDir && isDefaultSkippedDir(name):
		return ReasonVendor
	case f.ig.isIgnored(rel, isDir):
		return ReasonIgnored
	}

	if isDir {
		return ""
	}
	if !f.include.empty() && !f.include.match(rel) {
		return ReasonNotIncluded
	}
	if f.exclude.match(rel) {
		return ReasonExcluded
	}
	return ""
}
