package reads

import (
	"io"
	"strings"

	"github.com/nvnieuwk/ampclust/errs"
	"github.com/nvnieuwk/ampclust/kmer"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
)

// Reads unaligned reads from a FASTQ (or FASTA) file, optionally gzipped
type FastqSource struct {
	// The FASTQ file
	Path string

	// The read level filters
	Filter Filter
}

func (s *FastqSource) Reads() ([]kmer.Read, Stats, error) {
	var stats Stats

	reader, err := fastx.NewDefaultReader(s.Path)
	if err != nil {
		return nil, stats, errs.Wrap(errs.Config, errors.Wrap(err, s.Path), "cannot open input")
	}
	defer reader.Close()

	filter := s.Filter.pass()
	var out []kmer.Read
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, errs.Wrap(errs.Extract, errors.Wrap(err, s.Path), "cannot read FASTQ record")
		}

		stats.Total++
		read := kmer.Read{
			ID:  string(record.ID),
			Seq: strings.ToUpper(string(record.Seq.Seq)),
		}
		if len(record.Seq.Qual) > 0 {
			read.Qual = kmer.PhredSliceToProb(decodeQual(record.Seq.Qual))
		}
		if read, ok := filter.Apply(read, &stats); ok {
			out = append(out, read)
		}
	}
	return out, stats, nil
}

// decodeQual turns a Sanger encoded quality string into Phred scores
func decodeQual(qual []byte) []byte {
	phred := make([]byte, len(qual))
	for i, q := range qual {
		if q >= 33 {
			phred[i] = q - 33
		}
	}
	return phred
}
