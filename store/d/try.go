// Package d provides a small panic assertion helper in the style of the
// teacher's go/d package. The core engine never uses it on its request
// paths — every engine operation returns an error explicitly — but it is
// convenient in the demo command where a panic is an acceptable "this
// should never happen" signal.
package d

// PanicIfError panics if err is non-nil.
func PanicIfError(err error) {
	if err != nil {
		panic(err)
	}
}
