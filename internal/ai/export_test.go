package ai

var ResponseSchema = responseSchema
