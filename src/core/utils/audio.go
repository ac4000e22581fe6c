package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Duration 计算MP3文件的播放时长
func MP3Duration(audioFile string) (time.Duration, error) {
	file, err := os.Open(audioFile)
	if err != nil {
		return 0, fmt.Errorf("打开音频文件失败: %v", err)
	}
	defer file.Close()
	return mp3Duration(file)
}

// MP3DurationFromBytes 计算内存中MP3数据的播放时长
func MP3DurationFromBytes(data []byte) (time.Duration, error) {
	return mp3Duration(bytes.NewReader(data))
}

func mp3Duration(r io.ReadSeeker) (time.Duration, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return 0, fmt.Errorf("创建MP3解码器失败: %v", err)
	}
	sampleRate := decoder.SampleRate()
	if sampleRate <= 0 {
		return 0, fmt.Errorf("无效的MP3采样率: %d", sampleRate)
	}
	// go-mp3 解码为 16-bit stereo PCM，每个采样帧4字节
	frames := decoder.Length() / 4
	if frames < 0 {
		return 0, fmt.Errorf("无法获取MP3长度")
	}
	return time.Duration(frames) * time.Second / time.Duration(sampleRate), nil
}

// WavDuration 根据WAV文件头计算时长
func WavDuration(data []byte) (time.Duration, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, fmt.Errorf("无效的WAV数据")
	}
	byteRate := binary.LittleEndian.Uint32(data[28:32])
	if byteRate == 0 {
		return 0, fmt.Errorf("无效的WAV字节率")
	}
	dataSize := binary.LittleEndian.Uint32(data[40:44])
	if int(dataSize) > len(data)-44 {
		dataSize = uint32(len(data) - 44)
	}
	return time.Duration(dataSize) * time.Second / time.Duration(byteRate), nil
}

// BuildWavHeader 生成PCM数据的WAV文件头
func BuildWavHeader(dataSize, sampleRate, channels, bitsPerSample int) []byte {
	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(dataSize+36))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*channels*bitsPerSample/8))
	binary.LittleEndian.PutUint16(header[32:34], uint16(channels*bitsPerSample/8))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))
	return header
}

// DetectAudioFormat 根据文件头识别上传音频的格式，无法识别时返回空字符串
func DetectAudioFormat(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav"
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return "ogg"
	case len(data) >= 4 && string(data[0:4]) == "fLaC":
		return "flac"
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "webm"
	case len(data) >= 8 && string(data[4:8]) == "ftyp":
		return "m4a"
	}
	return ""
}

// SaveAudioFile 保存音频数据到文件
func SaveAudioFile(data []byte, filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %v", err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("创建文件失败: %v", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("写入音频数据失败: %v", err)
	}

	return nil
}
