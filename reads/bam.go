package reads

import (
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/nvnieuwk/ampclust/errs"
	"github.com/nvnieuwk/ampclust/kmer"
	"github.com/pkg/errors"
)

var rqTag = sam.NewTag("rq")

// Reads the aligned CCS reads of a BAM file
type BamSource struct {
	// The BAM file
	Path string

	// Only reads overlapping the region are used, nil uses every record.
	// With a <Path>.bai index the region is fetched, otherwise the file is scanned.
	Region *Region

	// The read level filters
	Filter Filter
}

func (s *BamSource) Reads() ([]kmer.Read, Stats, error) {
	var stats Stats

	file, err := os.Open(s.Path)
	if err != nil {
		return nil, stats, errs.Wrap(errs.Config, errors.Wrap(err, s.Path), "cannot open input")
	}
	defer file.Close()

	br, err := bam.NewReader(file, 1)
	if err != nil {
		return nil, stats, errs.Wrap(errs.Extract, errors.Wrap(err, s.Path), "cannot read BAM header")
	}
	defer br.Close()

	next, done, err := s.records(br)
	if err != nil {
		return nil, stats, err
	}
	defer done()

	filter := s.Filter.pass()
	var out []kmer.Read
	for {
		rec, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, errs.Wrap(errs.Extract, errors.Wrap(err, s.Path), "cannot read BAM record")
		}

		stats.Total++
		if s.Region != nil && !s.Region.Overlaps(refName(rec), rec.Pos, rec.End()) {
			stats.OutsideRegion++
			continue
		}
		if rec.Flags&AlignFilter != 0 {
			stats.Secondary++
			continue
		}
		if read, ok := filter.Apply(FromRecord(rec), &stats); ok {
			out = append(out, read)
		}
	}
	return out, stats, nil
}

// records returns an iterator over the records to consider
func (s *BamSource) records(br *bam.Reader) (func() (*sam.Record, error), func(), error) {
	all := func() (*sam.Record, error) { return br.Read() }
	if s.Region == nil {
		return all, func() {}, nil
	}

	var ref *sam.Reference
	for _, r := range br.Header().Refs() {
		if r.Name() == s.Region.Chrom {
			ref = r
			break
		}
	}
	if ref == nil {
		return nil, nil, errs.New(errs.Config, "contig %s of region %s is not in the header of %s", s.Region.Chrom, s.Region, s.Path)
	}

	indexFile, err := os.Open(s.Path + ".bai")
	if err != nil {
		return all, func() {}, nil
	}
	defer indexFile.Close()
	index, err := bam.ReadIndex(indexFile)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Extract, errors.Wrap(err, s.Path+".bai"), "cannot read BAM index")
	}
	chunks, err := index.Chunks(ref, s.Region.Start-1, s.Region.Stop)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Extract, errors.Wrapf(err, "%s in %s", s.Region, s.Path), "cannot fetch region")
	}
	it, err := bam.NewIterator(br, chunks)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Extract, errors.Wrapf(err, "%s in %s", s.Region, s.Path), "cannot fetch region")
	}
	next := func() (*sam.Record, error) {
		if it.Next() {
			return it.Record(), nil
		}
		if err := it.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return next, func() { it.Close() }, nil
}

func refName(rec *sam.Record) string {
	if rec.Ref == nil {
		return ""
	}
	return rec.Ref.Name()
}

// FromRecord converts a BAM record to a read. Missing base qualities give an
// empty Qual and the rq tag, when present, is kept as the read quality.
func FromRecord(rec *sam.Record) kmer.Read {
	read := kmer.Read{
		ID:    rec.Name,
		Seq:   string(rec.Seq.Expand()),
		Flags: rec.Flags,
	}
	if len(rec.Qual) > 0 && rec.Qual[0] != 0xff {
		read.Qual = kmer.PhredSliceToProb(rec.Qual)
	}
	if aux := rec.AuxFields.Get(rqTag); aux != nil {
		switch v := aux.Value().(type) {
		case float32:
			read.RQ = float64(v)
		case float64:
			read.RQ = v
		}
	}
	return read
}
