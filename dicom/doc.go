// Package dicom provides functions and data structures for reading, writing and transcoding the
// DICOM data element stream.
//
// The Transcoder re-encodes a stream from one transfer syntax to another without holding it in
// memory: element headers are rewritten, values are copied through a fixed size block and swapped
// when the byte order changes, and deflate or bzip2 compression is inserted or removed where the
// meta header ends. Ambiguous VRs (US or SS, OB or OW) are resolved from the Pixel Representation
// and Bits Allocated seen earlier in the stream, and values too long for a 16-bit length field
// are demoted to UN.
//
// The high level API consists of functions such as Parse and Construct which operate on
// Attributes buffered into memory as an AttributeList. The AttributeIterator and the
// AttributeWriter read and write top level Attributes one at a time. The FrameReader returns the
// frames of encapsulated Pixel Data, which may span several fragments.
package dicom
