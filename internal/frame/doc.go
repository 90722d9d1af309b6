// Package frame encodes and decodes the research event stream.
//
// # Wire Format
//
// Each frame is the marker "data: ", a JSON object with "type" and "data"
// members, and a blank line:
//
//	data: {"type":"progress","data":"Searching..."}\n\n
//
// Frame boundaries have no relation to network read boundaries. Decode
// buffers partial frames across reads, so the frames produced never depend
// on how the bytes were chunked.
//
// # Error Handling
//
// A frame that cannot be parsed is reported as a *DecodeError and skipped;
// decoding continues with the next frame. Errors from the underlying reader
// end the sequence.
package frame
