package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"
)

// The payload codec serializes the fields of a schema struct in declaration
// order using big-endian byte order. Supported field types: fixed-width
// integers, bool, float64, strings and slices (both with a uint16 length
// prefix), and nested structs. Payload schemas are defined in packets.go.

var errShortBuffer = errors.New("buffer too short for declared length")

// Marshal serializes a payload struct (or pointer to one) to bytes.
func Marshal(data interface{}) ([]byte, error) {
	val := reflect.ValueOf(data)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("payload must be a struct or pointer to struct, got %s", val.Kind())
	}

	buf := new(bytes.Buffer)
	if err := marshalValue(buf, val); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalValue(buf *bytes.Buffer, val reflect.Value) error {
	switch val.Kind() {
	case reflect.Struct:
		for i := 0; i < val.NumField(); i++ {
			if err := marshalValue(buf, val.Field(i)); err != nil {
				return err
			}
		}
	case reflect.String:
		s := val.String()
		if len(s) > math.MaxUint16 {
			return fmt.Errorf("string field exceeds maximum encodable length (%d)", len(s))
		}
		if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
			return err
		}
		buf.WriteString(s)
	case reflect.Slice:
		if val.Len() > math.MaxUint16 {
			return fmt.Errorf("slice field exceeds maximum encodable length (%d)", val.Len())
		}
		if err := binary.Write(buf, binary.BigEndian, uint16(val.Len())); err != nil {
			return err
		}
		for i := 0; i < val.Len(); i++ {
			if err := marshalValue(buf, val.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Bool, reflect.Float64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return binary.Write(buf, binary.BigEndian, val.Interface())
	default:
		return fmt.Errorf("unsupported field type %s", val.Kind())
	}
	return nil
}

// Unmarshal populates the struct pointed to by target from data, consuming
// fields in declaration order. Trailing bytes are an error so schema drift
// between client and server surfaces as a decode failure instead of silently
// misreading subsequent fields.
func Unmarshal(data []byte, target interface{}) error {
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to struct, got %s", val.Kind())
	}

	reader := bytes.NewReader(data)
	if err := unmarshalValue(reader, val.Elem()); err != nil {
		return err
	}
	if reader.Len() != 0 {
		return fmt.Errorf("%d trailing bytes after payload", reader.Len())
	}
	return nil
}

func unmarshalValue(reader *bytes.Reader, val reflect.Value) error {
	switch val.Kind() {
	case reflect.Struct:
		for i := 0; i < val.NumField(); i++ {
			if err := unmarshalValue(reader, val.Field(i)); err != nil {
				return err
			}
		}
	case reflect.String:
		length, err := readLength(reader)
		if err != nil {
			return err
		}
		strBytes := make([]byte, length)
		if _, err := reader.Read(strBytes); err != nil || len(strBytes) != int(length) {
			return errShortBuffer
		}
		val.SetString(string(strBytes))
	case reflect.Slice:
		length, err := readLength(reader)
		if err != nil {
			return err
		}
		slice := reflect.MakeSlice(val.Type(), int(length), int(length))
		for i := 0; i < int(length); i++ {
			if err := unmarshalValue(reader, slice.Index(i)); err != nil {
				return err
			}
		}
		val.Set(slice)
	case reflect.Bool, reflect.Float64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if err := binary.Read(reader, binary.BigEndian, val.Addr().Interface()); err != nil {
			return errShortBuffer
		}
	default:
		return fmt.Errorf("unsupported field type %s", val.Kind())
	}
	return nil
}

func readLength(reader *bytes.Reader) (uint16, error) {
	var length uint16
	if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
		return 0, errShortBuffer
	}
	if int(length) > reader.Len() {
		return 0, errShortBuffer
	}
	return length, nil
}
