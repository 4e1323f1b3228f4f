package timesync

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"holocap/internal/recordlog"
	"holocap/internal/services"
)

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// copyIfAbsent copies src to dst unless dst already exists. The copy lands
// under a temporary name and is renamed into place once complete.
func copyIfAbsent(src, dst string) (bool, error) {
	present, err := exists(dst)
	if err != nil {
		return false, writeErr("stat output", dst, err)
	}
	if present {
		return false, nil
	}
	in, err := os.Open(src)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "timesync", "open source", src, err)
	}
	defer in.Close()

	return true, publish(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// writeLogIfAbsent writes an ordinal-keyed record log unless path exists.
func writeLogIfAbsent(path string, records []recordlog.Record) (bool, error) {
	present, err := exists(path)
	if err != nil {
		return false, writeErr("stat output", path, err)
	}
	if present {
		return false, nil
	}
	return true, publish(path, func(w io.Writer) error {
		return recordlog.Encode(w, recordlog.KeyOrdinal, records)
	})
}

// publish streams content into a temp file next to dst and renames it.
func publish(dst string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return writeErr("create temp", dst, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}
	buf := bufio.NewWriterSize(tmp, 64*1024)
	if err := fill(buf); err != nil {
		cleanup()
		return writeErr("write", dst, err)
	}
	if err := buf.Flush(); err != nil {
		cleanup()
		return writeErr("flush", dst, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return writeErr("sync", dst, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return writeErr("close", dst, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return writeErr("chmod", dst, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return writeErr("rename", dst, err)
	}
	return nil
}

func writeErr(op, path string, err error) error {
	return services.WithHint(
		services.Wrap(services.ErrWrite, "timesync", op, path, err),
		"check free space and permissions under the recording's sync directory",
	)
}
