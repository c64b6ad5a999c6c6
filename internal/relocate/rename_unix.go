//go:build unix && !linux

package relocate

func renameNoReplace(src, dst string) error {
	return checkedRename(src, dst)
}
