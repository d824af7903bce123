package file

import (
	"archive/zip"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sigbench/sigctl/pkg/log"
	"go.uber.org/zap"
)

var (
	ErrPathIsDir  = errors.New("supplied path is a directory")
	ErrPathIsFile = errors.New("supplied path is a file")
)

// CreateFileP Creates a file and all its parent directories
// Make sure you close the file when using this function!
func CreateFileP(filePath string, perm fs.FileMode) (*os.File, error) {
	absDirPath, err := filepath.Abs(filepath.Dir(filePath))
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(absDirPath, perm)
	if err != nil {
		return nil, err
	}

	return os.Create(filePath)
}

func WriteTo(filePath string, text string) error {
	f, err := CreateFileP(filePath, 0750)
	if err != nil {
		return err
	}

	// Close the file when done
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	_, err = f.WriteString(text)
	return err
}

func Exists(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}

	if s.IsDir() {
		return ErrPathIsDir
	}

	return nil
}

func IsDir(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !s.IsDir() {
		return ErrPathIsFile
	}

	return nil
}

func Size(filePath string) (int64, error) {
	s, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return s.Size(), nil
}

func addFileToZip(absFilePath string, writer *zip.Writer) error {
	srcFile, err := os.Open(absFilePath)
	if err != nil {
		return err
	}

	defer func(srcFile *os.File) {
		_ = srcFile.Close()
	}(srcFile)

	zipFileWriter, err := writer.Create(filepath.Base(absFilePath))
	if err != nil {
		return err
	}

	_, err = io.Copy(zipFileWriter, srcFile)
	return err
}

// CreateArchive packs the given files into a flat zip archive at archivePath.
// Files that can not be read are skipped with an error log so a partial
// result archive still makes it out.
func CreateArchive(archivePath string, filesToAdd []string) error {
	if filepath.Ext(archivePath) != ".zip" {
		archivePath += ".zip"
	}

	archive, err := CreateFileP(archivePath, 0750)
	if err != nil {
		log.Error("error creating archive", zap.String("file", archivePath))
		return err
	}

	defer func(archive *os.File) {
		_ = archive.Close()
	}(archive)

	zipWriter := zip.NewWriter(archive)

	missing := 0
	for _, f := range filesToAdd {
		if err := addFileToZip(f, zipWriter); err != nil {
			log.Error("could not add file to archive", zap.String("file", f), zap.Error(err))
			missing++
		}
	}

	if err = zipWriter.Close(); err != nil {
		log.Error("error while closing zip file writer", zap.Error(err))
		return err
	}

	if missing > 0 {
		return errors.New("not all files were added to the archive")
	}

	return nil
}
