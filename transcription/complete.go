package transcription

import "errors"

// CheckComplete verifies that every child referenced by a composite is
// present. A Transcription produced by a successful save always passes;
// a Transcription read from an archive should be checked before loading.
func (tr *Transcription) CheckComplete() error {
	var errs []error
	for i, o := range tr.objects {
		if o.typ != Composite {
			continue
		}
		for slot, child := range o.comp.Children() {
			if child == NullObjectID || tr.Has(child) {
				continue
			}
			name, ver := tr.ObjectKeyInfo(slot.Key)
			errs = append(errs, &IncompleteError{
				Parent:  ObjectID(i),
				Key:     name,
				Version: ver,
				Index:   slot.Index,
				Child:   child,
			})
			if len(errs) >= maxReportedIncomplete {
				return errors.Join(errs...)
			}
		}
	}
	return errors.Join(errs...)
}

const maxReportedIncomplete = 10
