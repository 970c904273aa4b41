package reads

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/biogo/hts/bgzf"
	"github.com/nvnieuwk/ampclust/errs"
	"github.com/pkg/errors"
)

// A set of read names
type Whitelist map[string]struct{}

// Contains reports whether name is on the list. A nil list contains everything.
func (w Whitelist) Contains(name string) bool {
	if w == nil {
		return true
	}
	_, ok := w[name]
	return ok
}

// ReadWhitelist reads one read name per line, files ending in .gz are
// expected to be bgzip compressed
func ReadWhitelist(file string) (Whitelist, error) {
	openFile, err := os.Open(file)
	if err != nil {
		return nil, errs.Wrap(errs.Config, errors.Wrap(err, file), "cannot open whitelist")
	}
	defer openFile.Close()

	whitelist := Whitelist{}
	if strings.HasSuffix(file, ".gz") {
		err = whitelist.readBgzip(openFile)
	} else {
		err = whitelist.readPlain(openFile)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Extract, errors.Wrap(err, file), "cannot read whitelist")
	}
	return whitelist, nil
}

func (w Whitelist) add(line string) {
	name := strings.TrimSpace(line)
	if name == "" || strings.HasPrefix(name, "#") {
		return
	}
	// Only the first column is used, allowing name<TAB>anything files
	w[strings.Fields(name)[0]] = struct{}{}
}

func (w Whitelist) readBgzip(input io.Reader) error {
	bgReader, err := bgzf.NewReader(input, 1)
	if err != nil {
		return err
	}
	defer bgReader.Close()

	for {
		b, err := readLine(bgReader)
		if len(b) > 0 {
			w.add(string(bytes.TrimSpace(b)))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func readLine(r *bgzf.Reader) ([]byte, error) {
	var (
		data []byte
		b    byte
		err  error
	)
	for {
		b, err = r.ReadByte()
		if err != nil {
			break
		}
		data = append(data, b)
		if b == '\n' {
			break
		}
	}
	return data, err
}

func (w Whitelist) readPlain(input io.Reader) error {
	scanner := bufio.NewScanner(input)
	const maxCapacity = 8 * 1000000 // 8 MB
	scanner.Buffer(make([]byte, maxCapacity), maxCapacity)
	for scanner.Scan() {
		w.add(scanner.Text())
	}
	return scanner.Err()
}
