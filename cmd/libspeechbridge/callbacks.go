package main

/*
#include <stdlib.h>
#include "speechbridge.h"

static void speechbridge_call_result(speechbridge_result_fn fn, int64_t id, const char *text, bool is_final, void *user_data) {
	if (fn != NULL) {
		fn(id, text, is_final, user_data);
	}
}

static void speechbridge_call_error(speechbridge_error_fn fn, int64_t id, const char *message, void *user_data) {
	if (fn != NULL) {
		fn(id, message, user_data);
	}
}
*/
import "C"

import (
	"unsafe"

	"github.com/fmueller/speechbridge/internal/session"
)

// resultSink adapts a C result callback. The C string is freed as soon as
// the callback returns.
func resultSink(fn C.speechbridge_result_fn, userData unsafe.Pointer) session.ResultFunc {
	if fn == nil {
		return nil
	}
	return func(id int64, text string, final bool) {
		cText := C.CString(text)
		defer C.free(unsafe.Pointer(cText))
		C.speechbridge_call_result(fn, C.int64_t(id), cText, C.bool(final), userData)
	}
}

func errorSink(fn C.speechbridge_error_fn, userData unsafe.Pointer) session.ErrorFunc {
	if fn == nil {
		return nil
	}
	return func(id int64, message string) {
		cMessage := C.CString(message)
		defer C.free(unsafe.Pointer(cMessage))
		C.speechbridge_call_error(fn, C.int64_t(id), cMessage, userData)
	}
}
