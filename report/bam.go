package report

import (
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/nvnieuwk/ampclust/cluster"
	"github.com/nvnieuwk/ampclust/errs"
	"github.com/nvnieuwk/ampclust/reads"
	"github.com/pkg/errors"
)

var hpTag = sam.NewTag("HP")

// The options of the BAM output
type TagOptions struct {
	// Records without a cluster (not clustered or noise) are not written
	Drop bool

	// Also write one BAM per cluster to <Prefix>.cluster<label>.bam
	Split bool

	// The prefix of the split BAM files
	Prefix string

	// Read identifiers carry an extraction window (<name>/<start>_<stop>)
	// that is stripped to find the record
	Extracted bool
}

// Record counts of the BAM output
type TagStats struct {
	// Records read from the input
	Total int

	// Records that got an HP tag
	Tagged int

	// Records left out because of Drop
	Dropped int

	// The split files that were written, by label
	Split map[int]string
}

// TaggedPath returns the path of the HP tagged BAM
func TaggedPath(prefix string) string {
	return prefix + ".hptagged.bam"
}

// SplitPath returns the path of the BAM of one cluster
func SplitPath(prefix string, label int) string {
	return fmt.Sprintf("%s.cluster%d.bam", prefix, label)
}

// TagBam copies in to out and adds an HP:i:<label> tag to every record whose
// read was clustered. With Extracted the identifiers are mapped back to the
// record name first, otherwise they must match it exactly.
func TagBam(in string, out string, assignment map[string]int, opts TagOptions) (TagStats, error) {
	stats := TagStats{Split: map[int]string{}}

	labels := make(map[string]int, len(assignment))
	for id, label := range assignment {
		if opts.Extracted {
			id = reads.RecordName(id)
		}
		labels[id] = label
	}

	inFile, err := os.Open(in)
	if err != nil {
		return stats, errs.Wrap(errs.Extract, errors.Wrap(err, in), "cannot open input")
	}
	defer inFile.Close()
	br, err := bam.NewReader(inFile, 1)
	if err != nil {
		return stats, errs.Wrap(errs.Extract, errors.Wrap(err, in), "cannot read BAM header")
	}
	defer br.Close()

	w, err := newWriter(out, br.Header())
	if err != nil {
		return stats, err
	}
	defer w.close()
	splits := map[int]*writer{}
	defer func() {
		for _, s := range splits {
			s.close()
		}
	}()

	for {
		rec, err := br.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return stats, errs.Wrap(errs.Extract, errors.Wrap(err, in), "cannot read BAM record")
		}
		stats.Total++

		label, ok := labels[rec.Name]
		if opts.Drop && (!ok || label == cluster.Noise) {
			stats.Dropped++
			continue
		}
		if ok {
			if err := setTag(rec, label); err != nil {
				return stats, errs.Wrap(errs.Extract, err, "cannot tag %s", rec.Name)
			}
			stats.Tagged++
		}
		if err := w.write(rec); err != nil {
			return stats, err
		}

		if !opts.Split || !ok || label == cluster.Noise {
			continue
		}
		s, exists := splits[label]
		if !exists {
			path := SplitPath(opts.Prefix, label)
			if s, err = newWriter(path, br.Header()); err != nil {
				return stats, err
			}
			splits[label] = s
			stats.Split[label] = path
		}
		if err := s.write(rec); err != nil {
			return stats, err
		}
	}

	for label, s := range splits {
		delete(splits, label)
		if err := s.close(); err != nil {
			return stats, err
		}
	}
	return stats, w.close()
}

// setTag replaces any HP tag of rec
func setTag(rec *sam.Record, label int) error {
	aux, err := sam.NewAux(hpTag, label)
	if err != nil {
		return err
	}
	fields := rec.AuxFields[:0]
	for _, a := range rec.AuxFields {
		if a.Tag() != hpTag {
			fields = append(fields, a)
		}
	}
	rec.AuxFields = append(fields, aux)
	return nil
}

type writer struct {
	path   string
	file   *os.File
	bw     *bam.Writer
	closed bool
}

func newWriter(path string, header *sam.Header) (*writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errs.Wrap(errs.Extract, errors.Wrap(err, path), "cannot create BAM")
	}
	bw, err := bam.NewWriter(file, header, 1)
	if err != nil {
		file.Close()
		return nil, errs.Wrap(errs.Extract, errors.Wrap(err, path), "cannot create BAM")
	}
	return &writer{path: path, file: file, bw: bw}, nil
}

func (w *writer) write(rec *sam.Record) error {
	return errs.Wrap(errs.Extract, errors.Wrap(w.bw.Write(rec), w.path), "cannot write BAM record")
}

// close can be called more than once, only the first call does anything
func (w *writer) close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.bw.Close(); err != nil {
		w.file.Close()
		return errs.Wrap(errs.Extract, errors.Wrap(err, w.path), "cannot close BAM")
	}
	return errs.Wrap(errs.Extract, errors.Wrap(w.file.Close(), w.path), "cannot close BAM")
}
